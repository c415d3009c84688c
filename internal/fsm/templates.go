package fsm

// Template is a named state sequence plus per-state instruction text,
// either one of the 15 built-ins or produced once by the synthesiser for a
// novel process type.
type Template struct {
	Name         string
	States       []State
	Instructions map[State]string

	// GateCount is the number of sequential APPROVAL_GATE/MUTATE
	// confirmations this process requires. 0 and 1 both mean the
	// ordinary single pass through MUTATE; >1 means the runner reopens
	// APPROVAL_GATE after each MUTATE until GateCount gates have run.
	GateCount int
}

func readOnlyInstruction(topic string) string {
	return "Answer the request about " + topic + " using only read-class tools; do not mutate anything."
}

// builtinTemplates is the 15-entry catalogue ClassifierAndSynthesiser
// matches a classified process_type_name against before ever delegating to
// the synthesiser.
var builtinTemplates = map[string]Template{
	"refund_request": fullTemplate("refund_request", "a customer refund",
		"issue the refund and confirm the new balance",
		"schedule a confirmation notification to the customer"),

	"expense_report_approval": fullTemplate("expense_report_approval", "an expense report",
		"approve or reject the expense report",
		"notify the submitter of the decision"),

	"invoice_reconciliation": fullTemplate("invoice_reconciliation", "invoice reconciliation",
		"reconcile the invoice against payments received",
		"notify accounting of the reconciliation result"),

	"subscription_cancellation": fullTemplate("subscription_cancellation", "a subscription cancellation",
		"cancel the subscription and process any proration",
		"notify the customer of the cancellation"),

	"employee_onboarding": fullTemplate("employee_onboarding", "employee onboarding",
		"create the employee's accounts and provisioning records",
		"notify HR and the hiring manager"),

	"employee_offboarding": fullTemplate("employee_offboarding", "employee offboarding",
		"revoke the employee's accounts and access",
		"notify HR and IT security"),

	"vendor_payment": fullTemplate("vendor_payment", "a vendor payment",
		"process the vendor payment",
		"schedule a payment confirmation notice"),

	"contract_renewal": fullTemplate("contract_renewal", "a contract renewal",
		"update the contract record with the renewal terms",
		"notify the account owner"),

	"price_adjustment": fullTemplate("price_adjustment", "a price adjustment",
		"update the pricing record",
		"notify affected customers of the change"),

	"support_escalation": fullTemplate("support_escalation", "a support ticket escalation",
		"escalate the ticket to the appropriate team",
		"notify the customer of the escalation"),

	"payroll_adjustment": fullTemplate("payroll_adjustment", "a payroll adjustment",
		"apply the payroll adjustment",
		"notify payroll and the affected employee"),

	"inventory_adjustment": fullTemplate("inventory_adjustment", "an inventory adjustment",
		"apply the inventory adjustment",
		"notify the warehouse manager"),

	"sla_credit_issuance": fullTemplate("sla_credit_issuance", "an SLA credit issuance",
		"issue the SLA credit to the account",
		"notify the customer of the credit"),

	"data_migration": multiGateTemplate("data_migration", "a multi-gate data migration",
		"execute the migration gate",
		"notify stakeholders of migration progress", 5),

	"access_request": fullTemplate("access_request", "an access grant request",
		"grant or deny the requested access",
		"notify the requester and their manager"),
}

// fullTemplate builds the standard 8-state sequence shared by every
// built-in template. Every state's instruction names the process topic; the
// MUTATE and SCHEDULE_NOTIFY instructions are supplied per process type,
// while the other states share one instruction shape across domains.
func fullTemplate(name, topic, mutateInstruction, notifyInstruction string) Template {
	return Template{
		Name:   name,
		States: append([]State(nil), canonicalOrder...),
		Instructions: map[State]string{
			StateDecompose:      "Break the request about " + topic + " into concrete sub-steps.",
			StateAssess:         readOnlyInstruction(topic),
			StateCompute:        "Perform any calculations required for " + topic + ".",
			StatePolicyCheck:    "Evaluate the applicable policy document for " + topic + ".",
			StateApprovalGate:   "Confirm approval status before any mutation related to " + topic + ".",
			StateMutate:         mutateInstruction,
			StateScheduleNotify: notifyInstruction,
			StateComplete:       "Summarise the outcome for " + topic + ".",
		},
	}
}

// multiGateTemplate builds a fullTemplate that requires gates sequential
// APPROVAL_GATE/MUTATE confirmations before SCHEDULE_NOTIFY, e.g. a staged
// data migration that must be re-confirmed before each of its cutover
// steps.
func multiGateTemplate(name, topic, mutateInstruction, notifyInstruction string, gates int) Template {
	t := fullTemplate(name, topic, mutateInstruction, notifyInstruction)
	t.GateCount = gates
	return t
}

// LookupBuiltin returns the built-in template matching name, if any.
func LookupBuiltin(name string) (Template, bool) {
	t, ok := builtinTemplates[name]
	return t, ok
}

// ReadOnlyTemplate is the collapsed DECOMPOSE → ASSESS → COMPLETE sequence
// used for purely informational requests.
func ReadOnlyTemplate(topic string) Template {
	return Template{
		Name:   "read_only",
		States: []State{StateDecompose, StateAssess, StateComplete},
		Instructions: map[State]string{
			StateDecompose: "Identify exactly what information is being requested about " + topic + ".",
			StateAssess:    readOnlyInstruction(topic),
			StateComplete:  "Summarise the findings about " + topic + ".",
		},
	}
}
