// Package stage defines the fixed application pipeline every client moves
// through.  The catalog is compiled in: stages are never created, renamed or
// reordered at runtime, so lookups are pure functions over a static table.
package stage

import "math"

// Total is the number of stages in the pipeline.  Stage IDs are dense:
// 1 is the initial stage for every new client and Total is the terminal
// "complete" stage.
const Total = 17

// Stage describes a single pipeline milestone.
type Stage struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
}

// catalog is ordered by ID; index i holds stage i+1.
var catalog = [Total]Stage{
	{1, "Initial Consultation", "Consultation", "Intake call completed and engagement scope agreed."},
	{2, "Agreement Signed", "Agreement", "Service agreement signed and retainer received."},
	{3, "Document Checklist Issued", "Checklist", "Personalized document checklist sent to the client."},
	{4, "Document Collection", "Documents", "Client is gathering and uploading supporting documents."},
	{5, "Document Review", "Review", "Submitted documents are under internal review."},
	{6, "Forms Preparation", "Forms", "Application forms are being drafted from the reviewed documents."},
	{7, "Client Form Review", "Client Review", "Drafted forms sent to the client for confirmation."},
	{8, "Supporting Letters", "Letters", "Reference and support letters are being prepared."},
	{9, "Application Assembly", "Assembly", "Full application package is being assembled."},
	{10, "Quality Check", "QC", "Senior review of the assembled package."},
	{11, "Application Submitted", "Submitted", "Package filed with the receiving authority."},
	{12, "Confirmation Received", "Confirmed", "Filing confirmation and receipt number recorded."},
	{13, "Biometrics", "Biometrics", "Biometrics appointment scheduled or completed."},
	{14, "Additional Requests", "RFE", "Responding to requests for additional evidence, if any."},
	{15, "Interview Preparation", "Interview Prep", "Preparing the client for the interview."},
	{16, "Decision Pending", "Pending", "Application is awaiting a final decision."},
	{17, "Application Complete", "Complete", "Final decision received; engagement closed out."},
}

// ByID returns the stage with the given ID.  The second return value is
// false when the ID falls outside 1..Total.
func ByID(id int) (Stage, bool) {
	if id < 1 || id > Total {
		return Stage{}, false
	}
	return catalog[id-1], true
}

// All returns the full ordered catalog.
func All() []Stage {
	out := make([]Stage, Total)
	copy(out, catalog[:])
	return out
}

// Valid reports whether id names an existing stage.
func Valid(id int) bool { return id >= 1 && id <= Total }

// Progress converts a current stage into a whole-number completion
// percentage.  Stage Total always maps to 100.
func Progress(currentStage int) int {
	if currentStage < 1 {
		return 0
	}
	if currentStage > Total {
		currentStage = Total
	}
	return int(math.Round(float64(currentStage) / float64(Total) * 100))
}
