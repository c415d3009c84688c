package synth

import "regexp"

// gapPattern pairs a regex against the task text with the capability it
// implies and a template signature (parameter shape) for the synthesiser
// prompt. Grouped by domain: finance, Monte Carlo / numerics, HR/payroll,
// SLA/ops, supply chain, date/time, statistics, tax, risk/compliance,
// AR/collections, followed by one further statistics pattern and one further
// supply-chain pattern at the end.
type gapPattern struct {
	Domain            string
	Pattern           *regexp.Regexp
	CapabilityName    string
	TemplateSignature string
}

func mustPattern(domain, expr, capability, signature string) gapPattern {
	return gapPattern{
		Domain:            domain,
		Pattern:           regexp.MustCompile(expr),
		CapabilityName:    capability,
		TemplateSignature: signature,
	}
}

// gapPatterns is Phase 1 of DynamicToolRegistry's gap detection: 36 regular
// expressions across 10 domains, checked with zero external cost before
// ever falling back to the fast-tier LLM.
var gapPatterns = []gapPattern{
	// finance
	mustPattern("finance", `(?i)net present value|\bnpv\b`, "calculate_npv", "(cash_flows []decimal, rate decimal) decimal"),
	mustPattern("finance", `(?i)internal rate of return|\birr\b`, "calculate_irr", "(cash_flows []decimal) decimal"),
	mustPattern("finance", `(?i)amortiz(e|ation) schedule`, "generate_amortization_schedule", "(principal, rate decimal, periods int) []decimal"),
	mustPattern("finance", `(?i)working capital`, "calculate_working_capital", "(current_assets, current_liabilities decimal) decimal"),

	// monte carlo / numerics
	mustPattern("monte_carlo", `(?i)monte carlo|simulate \d+ (scenarios|trials|runs)`, "run_monte_carlo_simulation", "(mean, stddev decimal, trials int) []decimal"),
	mustPattern("monte_carlo", `(?i)confidence interval`, "calculate_confidence_interval", "(samples []decimal, level decimal) (decimal, decimal)"),
	mustPattern("monte_carlo", `(?i)value at risk|\bvar\b at \d+%`, "calculate_value_at_risk", "(returns []decimal, confidence decimal) decimal"),

	// HR/payroll
	mustPattern("hr_payroll", `(?i)overtime pay|time and a half`, "calculate_overtime_pay", "(hourly_rate decimal, overtime_hours decimal) decimal"),
	mustPattern("hr_payroll", `(?i)prorated? salary`, "calculate_prorated_salary", "(annual_salary decimal, days_worked, days_in_period int) decimal"),
	mustPattern("hr_payroll", `(?i)accrued pto|paid time off accrual`, "calculate_pto_accrual", "(hours_worked decimal, accrual_rate decimal) decimal"),
	mustPattern("hr_payroll", `(?i)severance (pay|package)`, "calculate_severance", "(years_of_service int, weekly_pay decimal) decimal"),

	// SLA/ops
	mustPattern("sla_ops", `(?i)sla breach|service level (agreement|target)`, "evaluate_sla_compliance", "(response_times []decimal, threshold decimal) decimal"),
	mustPattern("sla_ops", `(?i)mean time to (resolve|repair)|\bmttr\b`, "calculate_mttr", "(resolution_times []decimal) decimal"),
	mustPattern("sla_ops", `(?i)uptime percentage|availability percentage`, "calculate_uptime_percentage", "(downtime_minutes, period_minutes decimal) decimal"),

	// supply chain
	mustPattern("supply_chain", `(?i)reorder point`, "calculate_reorder_point", "(avg_daily_usage decimal, lead_time_days int, safety_stock decimal) decimal"),
	mustPattern("supply_chain", `(?i)economic order quantity|\beoq\b`, "calculate_eoq", "(annual_demand, order_cost, holding_cost decimal) decimal"),
	mustPattern("supply_chain", `(?i)inventory turnover`, "calculate_inventory_turnover", "(cogs, avg_inventory decimal) decimal"),

	// date/time
	mustPattern("date_time", `(?i)business days? between|working days? between`, "calculate_business_days", "(start, end string) int"),
	mustPattern("date_time", `(?i)days? (until|past) due`, "calculate_days_overdue", "(due_date, reference_date string) int"),
	mustPattern("date_time", `(?i)fiscal (quarter|year)`, "resolve_fiscal_period", "(date string, fiscal_year_start_month int) string"),

	// statistics
	mustPattern("statistics", `(?i)standard deviation`, "calculate_standard_deviation", "(values []decimal) decimal"),
	mustPattern("statistics", `(?i)weighted average`, "calculate_weighted_average", "(values, weights []decimal) decimal"),
	mustPattern("statistics", `(?i)percentile`, "calculate_percentile", "(values []decimal, percentile decimal) decimal"),
	mustPattern("statistics", `(?i)(year over year|\byoy\b) (growth|change)`, "calculate_yoy_growth", "(current, prior decimal) decimal"),

	// tax
	mustPattern("tax", `(?i)sales tax`, "calculate_sales_tax", "(subtotal decimal, rate decimal) decimal"),
	mustPattern("tax", `(?i)effective tax rate`, "calculate_effective_tax_rate", "(tax_paid, taxable_income decimal) decimal"),
	mustPattern("tax", `(?i)withholding amount`, "calculate_withholding", "(gross_pay decimal, withholding_rate decimal) decimal"),

	// risk/compliance
	mustPattern("risk_compliance", `(?i)risk score`, "calculate_risk_score", "(factors map[string]decimal, weights map[string]decimal) decimal"),
	mustPattern("risk_compliance", `(?i)exposure (limit|threshold)`, "evaluate_exposure_limit", "(current_exposure, limit decimal) bool"),
	mustPattern("risk_compliance", `(?i)materiality threshold`, "evaluate_materiality", "(amount, threshold decimal) bool"),

	// AR/collections
	mustPattern("ar_collections", `(?i)days sales outstanding|\bdso\b`, "calculate_dso", "(accounts_receivable, total_credit_sales decimal, days int) decimal"),
	mustPattern("ar_collections", `(?i)aging bucket|ar aging`, "bucket_ar_aging", "(invoices []map[string]any, reference_date string) map[string][]map[string]any"),
	mustPattern("ar_collections", `(?i)late (fee|penalty)`, "calculate_late_fee", "(overdue_amount, daily_rate decimal, days_late int) decimal"),
	mustPattern("ar_collections", `(?i)collection rate`, "calculate_collection_rate", "(collected, billed decimal) decimal"),

	mustPattern("statistics", `(?i)z[- ]?score`, "calculate_z_score", "(value, mean, stddev decimal) decimal"),
	mustPattern("supply_chain", `(?i)safety stock`, "calculate_safety_stock", "(max_daily_usage, avg_daily_usage decimal, max_lead_time, avg_lead_time int) decimal"),
}

// DetectGap runs Phase 1 pattern matching against taskText and returns the
// first match (patterns are checked in declaration order; a task rarely
// trips more than one, and the first is the one the classifier prompt was
// written against).
func DetectGap(taskText string) (capabilityName string, templateSignature string, found bool) {
	for _, p := range gapPatterns {
		if p.Pattern.MatchString(taskText) {
			return p.CapabilityName, p.TemplateSignature, true
		}
	}
	return "", "", false
}
