package processors

import "splitpay/internal/models"

// EvidenceDetail describes one evidence type: whether it is free text or an
// uploaded file, and the guidance shown to the seller.
type EvidenceDetail struct {
	Kind        string
	Description string
}

// EvidenceCatalog is the closed set of evidence types the fiat processor
// accepts on a dispute response.
var EvidenceCatalog = map[string]EvidenceDetail{
	"access_activity_log": {
		Kind:        models.EvidenceKindText,
		Description: "Any server or activity logs showing proof that the customer accessed or downloaded the purchased digital product. This information should include IP addresses, corresponding timestamps, and any detailed recorded activity. Has a maximum character count of 20,000.",
	},
	"billing_address": {
		Kind:        models.EvidenceKindText,
		Description: "The billing address provided by the customer.",
	},
	"cancellation_policy": {
		Kind:        models.EvidenceKindFile,
		Description: "Your subscription cancellation policy, as shown to the customer.",
	},
	"cancellation_policy_disclosure": {
		Kind:        models.EvidenceKindText,
		Description: "An explanation of how and when the customer was shown your refund policy prior to purchase. Has a maximum character count of 20,000.",
	},
	"cancellation_rebuttal": {
		Kind:        models.EvidenceKindText,
		Description: "A justification for why the customer's subscription was not canceled. Has a maximum character count of 20,000.",
	},
	"customer_communication": {
		Kind:        models.EvidenceKindFile,
		Description: "Any communication with the customer that you feel is relevant to your case. Examples include emails proving that the customer received the product or service, or demonstrating their use of or satisfaction with the product or service",
	},
	"customer_email_address": {
		Kind:        models.EvidenceKindText,
		Description: "The email address of the customer.",
	},
	"customer_name": {
		Kind:        models.EvidenceKindText,
		Description: "The name of the customer.",
	},
	"customer_purchase_ip": {
		Kind:        models.EvidenceKindText,
		Description: "The IP address that the customer used when making the purchase.",
	},
	"customer_signature": {
		Kind:        models.EvidenceKindFile,
		Description: "A relevant document or contract showing the customer's signature.",
	},
	"duplicate_charge_documentation": {
		Kind:        models.EvidenceKindFile,
		Description: "Documentation for the prior charge that can uniquely identify the charge, such as a receipt, shipping label, work order, etc. This document should be paired with a similar document from the disputed payment that proves the two payments are separate.",
	},
	"duplicate_charge_explanation": {
		Kind:        models.EvidenceKindText,
		Description: "An explanation of the difference between the disputed charge versus the prior charge that appears to be a duplicate. Has a maximum character count of 20,000.",
	},
	"duplicate_charge_id": {
		Kind:        models.EvidenceKindText,
		Description: "The Stripe ID for the prior charge which appears to be a duplicate of the disputed charge.",
	},
	"product_description": {
		Kind:        models.EvidenceKindText,
		Description: "A description of the product or service that was sold. Has a maximum character count of 20,000.",
	},
	"receipt": {
		Kind:        models.EvidenceKindFile,
		Description: "Any receipt or message sent to the customer notifying them of the charge.",
	},
	"refund_policy": {
		Kind:        models.EvidenceKindFile,
		Description: "Your refund policy, as shown to the customer.",
	},
	"refund_policy_disclosure": {
		Kind:        models.EvidenceKindText,
		Description: "Documentation demonstrating that the customer was shown your refund policy prior to purchase. Has a maximum character count of 20,000.",
	},
	"refund_refusal_explanation": {
		Kind:        models.EvidenceKindText,
		Description: "A justification for why the customer is not entitled to a refund. Has a maximum character count of 20,000.",
	},
	"service_date": {
		Kind:        models.EvidenceKindText,
		Description: "The date on which the customer received or began receiving the purchased service, in a clear human-readable format.",
	},
	"service_documentation": {
		Kind:        models.EvidenceKindFile,
		Description: "Documentation showing proof that a service was provided to the customer. This could include a copy of a signed contract, work order, or other form of written agreement",
	},
	"shipping_address": {
		Kind:        models.EvidenceKindText,
		Description: "The address to which a physical product was shipped. You should try to include as complete address information as possible.",
	},
	"shipping_carrier": {
		Kind:        models.EvidenceKindText,
		Description: "The delivery service that shipped a physical product, such as Fedex, UPS, USPS, etc. If multiple carriers were used for this purchase, please separate them with commas.",
	},
	"shipping_date": {
		Kind:        models.EvidenceKindText,
		Description: "The date on which a physical product began its route to the shipping address, in a clear human-readable format.",
	},
	"shipping_documentation": {
		Kind:        models.EvidenceKindFile,
		Description: "Documentation showing proof that a product was shipped to the customer at the same address the customer provided to you. This could include a copy of the shipment receipt, shipping label, etc. It should show the customer's full shipping address, if possible.",
	},
	"shipping_tracking_number": {
		Kind:        models.EvidenceKindText,
		Description: "The tracking number for a physical product, obtained from the delivery service. If multiple tracking numbers were generated for this purchase, please separate them with commas.",
	},
	"uncategorized_file": {
		Kind:        models.EvidenceKindFile,
		Description: "Any additional evidence or statements.",
	},
	"uncategorized_text": {
		Kind:        models.EvidenceKindText,
		Description: "Any additional evidence or statements. Has a maximum character count of 20,000.",
	},
}

// evidenceTypesByReason maps a dispute reason to the evidence types a
// response needs. Reasons outside this table require no auto-created rows.
var evidenceTypesByReason = map[string][]string{
	"duplicate": {
		"duplicate_charge_id",
		"duplicate_charge_explanation",
		"duplicate_charge_documentation",
		"shipping_documentation",
		"customer_communication",
		"uncategorized_text",
		"uncategorized_file",
	},
	"credit_not_processed": {
		"refund_policy",
		"refund_policy_disclosure",
		"refund_refusal_explanation",
		"customer_communication",
		"uncategorized_text",
		"uncategorized_file",
	},
	"product_not_received": {
		"uncategorized_text",
		"uncategorized_file",
		"customer_communication",
		"customer_signature",
		"shipping_address",
		"shipping_documentation",
		"shipping_date",
		"shipping_carrier",
		"shipping_tracking_number",
	},
	"product_unacceptable": {
		"product_description",
		"customer_communication",
		"refund_policy",
		"refund_policy_disclosure",
		"uncategorized_file",
		"uncategorized_text",
	},
	"fraudulent": {
		"customer_communication",
		"customer_signature",
		"shipping_address",
		"shipping_documentation",
		"shipping_date",
		"shipping_carrier",
		"shipping_tracking_number",
		"uncategorized_file",
		"uncategorized_text",
	},
}

// RequiredEvidenceTypes returns the evidence types needed to respond to a
// dispute with the given reason.
func RequiredEvidenceTypes(reason string) []string {
	return evidenceTypesByReason[reason]
}
