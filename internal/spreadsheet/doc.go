// Package spreadsheet renders an extraction result into a local XLSX
// workbook laid out like the export service's worksheets: Deal Summary,
// Financials, Advisors, Power Plant Details, and Metadata. Each sheet has a
// header row and one data row; absent values are left blank.
package spreadsheet
