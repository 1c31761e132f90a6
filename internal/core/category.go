package core

import (
	"sort"
	"strings"
)

// Category classifies a transaction for the monthly breakdown.
type Category string

const (
	Loans                     Category = "LOANS"
	EquityFinancing           Category = "EQUITY_FINANCING"
	Revenue                   Category = "REVENUE"
	TaxReturns                Category = "TAX_RETURNS"
	OtherIncome               Category = "OTHER_INCOME"
	InterestAndRepayments     Category = "INTEREST_AND_REPAYMENTS"
	Investments               Category = "INVESTMENTS"
	FoodAndDrinks             Category = "FOOD_AND_DRINKS"
	VehicleAndDrivingExpenses Category = "VEHICLE_AND_DRIVING_EXPENSES"
	RentAndFacilities         Category = "RENT_AND_FACILITIES"
	TravelExpenses            Category = "TRAVEL_EXPENSES"
	MarketingAndPromotion     Category = "MARKETING_AND_PROMOTION"
	OtherOperatingCosts       Category = "OTHER_OPERATING_COSTS"
	Utilities                 Category = "UTILITIES"
	CollectionCosts           Category = "COLLECTION_COSTS"
	Salaries                  Category = "SALARIES"
	PensionPayments           Category = "PENSION_PAYMENTS"
	CorporateSavingsDeposits  Category = "CORPORATE_SAVINGS_DEPOSITS"
	EquityWithdrawal          Category = "EQUITY_WITHDRAWAL"
	SalesTax                  Category = "SALES_TAX"
	PayrollTax                Category = "PAYROLL_TAX"
	CorporateIncomeTax        Category = "CORPORATE_INCOME_TAX"
	UnspecifiedTax            Category = "UNSPECIFIED_TAX"
	OtherExpenses             Category = "OTHER_EXPENSES"
)

// Direction tells whether a category holds incoming or outgoing money.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

type categoryInfo struct {
	label     string
	direction Direction
	priority  int
}

// categoryTable is the single source of label, direction and sort order.
// Priority follows the label order used by the report and export views.
var categoryTable = map[Category]categoryInfo{
	CollectionCosts:           {"Collection Costs", Outgoing, 1},
	CorporateIncomeTax:        {"Corporate Income Tax", Outgoing, 2},
	CorporateSavingsDeposits:  {"Corporate Savings Deposits", Outgoing, 3},
	EquityFinancing:           {"Equity Financing", Incoming, 4},
	EquityWithdrawal:          {"Equity Withdrawal", Outgoing, 5},
	FoodAndDrinks:             {"Food and Drinks", Outgoing, 6},
	InterestAndRepayments:     {"Interest and Repayments", Outgoing, 7},
	Investments:               {"Investments", Outgoing, 8},
	Loans:                     {"Loans", Incoming, 9},
	MarketingAndPromotion:     {"Marketing and Promotion", Outgoing, 10},
	OtherExpenses:             {"Other Expenses", Outgoing, 11},
	OtherIncome:               {"Other Income", Incoming, 12},
	OtherOperatingCosts:       {"Other Operating Costs", Outgoing, 13},
	PayrollTax:                {"Payroll Tax", Outgoing, 14},
	PensionPayments:           {"Pension Payments", Outgoing, 15},
	RentAndFacilities:         {"Rent and Facilities", Outgoing, 16},
	Revenue:                   {"Revenue", Incoming, 17},
	Salaries:                  {"Salaries", Outgoing, 18},
	SalesTax:                  {"Sales Tax", Outgoing, 19},
	TaxReturns:                {"Tax Returns", Incoming, 20},
	TravelExpenses:            {"Travel Expenses", Outgoing, 21},
	UnspecifiedTax:            {"Unspecified Tax", Outgoing, 22},
	Utilities:                 {"Utilities", Outgoing, 23},
	VehicleAndDrivingExpenses: {"Vehicles and Driving Expenses", Outgoing, 24},
}

// Categories returns every known category in priority order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTable))
	for c := range categoryTable {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// Label returns the human readable name, or the identifier if unknown.
func (c Category) Label() string {
	if info, ok := categoryTable[c]; ok {
		return info.label
	}
	return string(c)
}

// Priority orders categories for display and export; unknown categories
// sort last.
func (c Category) Priority() int {
	if info, ok := categoryTable[c]; ok {
		return info.priority
	}
	return len(categoryTable) + 1
}

func (c Category) Direction() Direction {
	return categoryTable[c].direction
}

func (c Category) IsIncome() bool {
	info, ok := categoryTable[c]
	return ok && info.direction == Incoming
}

func (c Category) IsExpense() bool {
	return !c.IsIncome()
}

// CategoryFromLabel maps an upstream label (case-insensitive) or identifier
// to a Category. Unknown labels fall back to OtherIncome for positive
// amounts and OtherExpenses otherwise.
func CategoryFromLabel(label string, amount Amount) Category {
	label = strings.TrimSpace(label)
	for c, info := range categoryTable {
		if strings.EqualFold(info.label, label) || strings.EqualFold(string(c), label) {
			return c
		}
	}
	if amount.Sign() > 0 {
		return OtherIncome
	}
	return OtherExpenses
}
