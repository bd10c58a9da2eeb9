package engine

// Reason codes attached to decisions. Codes are machine-checkable contract;
// the order within a decision reflects rule evaluation order.
const (
	// Hard one-to-one keys.
	ReasonHardIBANAmount = "HARD_IBAN_AMOUNT"
	ReasonHardE2EAmount  = "HARD_E2E_AMOUNT"
	ReasonHardInvoiceNo  = "HARD_INVOICE_NO"

	// Line-item / amount-candidate resolution.
	ReasonLineItemNetMatch = "LINE_ITEM_NET_MATCH"

	// Recurring-transaction reuse of a linked document.
	ReasonSubscriptionReuse = "SUBSCRIPTION_REUSE_LINKED_DOC"

	// Soft one-to-one outcomes.
	ReasonSoftInvoiceNoOutOfWindow = "SOFT_INVOICE_NO_AMOUNT_OUT_OF_WINDOW"
	ReasonSoftAmountDate           = "SOFT_AMOUNT_DATE"
	ReasonSoftAmountVendorOOW      = "SOFT_AMOUNT_VENDOR_OUT_OF_WINDOW"
	ReasonScoreOnly                = "SCORE_ONLY"

	// Many-to-one subset-sum outcomes.
	ReasonSubsetSumExact             = "SUBSET_SUM_EXACT"
	ReasonAmbiguousMultipleSolutions = "AMBIGUOUS_MULTIPLE_SOLUTIONS"

	// One-to-many settlements.
	ReasonPartialPaymentSum = "PARTIAL_PAYMENT_SUM"

	// Many-to-many cluster outcomes.
	ReasonManyToManyExact = "MANY_TO_MANY_EXACT"
	ReasonClusterNNWizard = "CLUSTER_NN_WIZARD"
)
