package models

// QuestionType tags a generated question with the analysis category it
// came from. The set is open: rows written by older versions of the tool
// may carry other tags.
type QuestionType string

const (
	QuestionTypeSuggested QuestionType = "suggested"
	QuestionTypeDesign    QuestionType = "design"
	QuestionTypeBusiness  QuestionType = "business"
	QuestionTypeGeneral   QuestionType = "general"
)

// Analysis is the structured bundle produced for a ticket: review
// questions grouped by category, risk notes, and whatever extra payload
// the producer attached. It is serialized as JSON into the ticket row.
type Analysis struct {
	SuggestedQuestions []string       `json:"suggested_questions,omitempty"`
	DesignQuestions    []string       `json:"design_questions,omitempty"`
	BusinessQuestions  []string       `json:"business_questions,omitempty"`
	Risks              []string       `json:"risks,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// Empty reports whether the analysis carries no data at all.
func (a Analysis) Empty() bool {
	return len(a.SuggestedQuestions) == 0 &&
		len(a.DesignQuestions) == 0 &&
		len(a.BusinessQuestions) == 0 &&
		len(a.Risks) == 0 &&
		len(a.Extra) == 0
}

// Ticket is the input record for storing one analyzed unit of work.
//
// Title and Description are required. ID is assigned from the current
// timestamp when empty. Key is a display key shown to users; it defaults
// to the ID. Questions and TestCases are flat lists supplied alongside
// the categorized questions inside Analysis.
type Ticket struct {
	ID          string   `json:"id,omitempty"`
	Key         string   `json:"key,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Analysis    Analysis `json:"analysis,omitempty"`
	Questions   []string `json:"questions,omitempty"`
	TestCases   []string `json:"test_cases,omitempty"`
}

// StoredTicket is a fully hydrated ticket read back from storage.
// Timestamps are ISO-8601 strings as persisted in the database.
type StoredTicket struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	Analysis    Analysis `json:"analysis"`
	Questions   []string `json:"questions"`
	TestCases   []string `json:"test_cases"`
}

// TicketSummary is one row of a ticket listing with live counts of the
// dependent rows. RiskCount is always zero until a risks table exists.
type TicketSummary struct {
	ID            string `json:"id"`
	Key           string `json:"key"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	QuestionCount int    `json:"question_count"`
	TestCaseCount int    `json:"test_case_count"`
	RiskCount     int    `json:"risk_count"`
}

// SearchMatch is one substring-search hit from the search index.
type SearchMatch struct {
	ID            string `json:"id"`
	Key           string `json:"key"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	QuestionCount int    `json:"question_count"`
	TestCaseCount int    `json:"test_case_count"`
}

// Statistics reports aggregate counts over the whole store. Risks and
// screens are placeholders for tables that do not exist yet.
type Statistics struct {
	TotalTickets   int   `json:"total_tickets"`
	TotalQuestions int   `json:"total_questions"`
	TotalTestCases int   `json:"total_test_cases"`
	TotalRisks     int   `json:"total_risks"`
	TotalScreens   int   `json:"total_screens"`
	StorageBytes   int64 `json:"storage_size"`
}

// TimelinePoint is one day of ticket creation activity for charting.
type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
