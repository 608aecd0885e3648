package spreadsheet

// Column maps a worksheet header to a key in an extracted_data section.
type Column struct {
	Header string
	Key    string
}

// Sheet describes one worksheet and the extracted_data section feeding it.
type Sheet struct {
	Name    string
	Section string
	Columns []Column
}

const dealIDHeader = "Deal ID"

// Layout lists the worksheets in workbook order. The first column of every
// sheet is the deal identifier.
var Layout = []Sheet{
	{
		Name:    "Deal Summary",
		Section: "deal_summary",
		Columns: []Column{
			{dealIDHeader, "deal_id"},
			{"Deal Name", "deal_name"},
			{"Deal Type", "deal_type"},
			{"Target Company", "target_company"},
			{"Buyer", "buyer"},
			{"Seller", "seller"},
			{"Country", "country"},
			{"Announcement Date", "announcement_date"},
			{"Signing Date", "signing_date"},
			{"Closing Date", "closing_date"},
			{"Deal Size (USD)", "deal_size_usd"},
			{"Currency", "currency"},
			{"Status", "status"},
		},
	},
	{
		Name:    "Financials",
		Section: "financials",
		Columns: []Column{
			{dealIDHeader, "deal_id"},
			{"Revenue", "revenue"},
			{"EBITDA", "ebitda"},
			{"Enterprise Value", "enterprise_value"},
			{"EV/EBITDA Multiple", "ev_ebitda_multiple"},
			{"Debt Assumed", "debt_assumed"},
			{"Other Key Metrics", "other_key_metrics"},
		},
	},
	{
		Name:    "Advisors",
		Section: "advisors",
		Columns: []Column{
			{dealIDHeader, "deal_id"},
			{"Buy-Side Advisor", "buy_side_advisor"},
			{"Sell-Side Advisor", "sell_side_advisor"},
			{"Legal Counsel (Buyer)", "legal_counsel_buyer"},
			{"Legal Counsel (Seller)", "legal_counsel_seller"},
			{"Other Advisors", "other_advisors"},
		},
	},
	{
		Name:    "Power Plant Details",
		Section: "power_plant_details",
		Columns: []Column{
			{dealIDHeader, "deal_id"},
			{"Project Name", "project_name"},
			{"Location", "location"},
			{"Capacity (MW)", "capacity_mw"},
			{"Technology Type", "technology_type"},
			{"COD", "cod"},
		},
	},
	{
		Name:    "Metadata",
		Section: "metadata",
		Columns: []Column{
			{dealIDHeader, "deal_id"},
			{"Source File Name", "source_file_name"},
			{"Date Processed", "date_processed"},
			{"Extraction Confidence", "extraction_confidence"},
			{"QC Status", "qc_status"},
			{"QC Analyst", "qc_analyst"},
			{"QC Date", "qc_date"},
		},
	},
}
