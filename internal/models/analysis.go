package models

import "time"

// DocumentType classifies a concurso-lifecycle document
type DocumentType string

const (
	DocEditalAbertura    DocumentType = "edital_abertura"
	DocEditalRetificacao DocumentType = "edital_retificacao"
	DocConvocacao        DocumentType = "convocacao"
	DocHomologacao       DocumentType = "homologacao"
	DocProrrogacao       DocumentType = "prorrogacao"
	DocCancelamento      DocumentType = "cancelamento"
	DocResultadoParcial  DocumentType = "resultado_parcial"
	DocGabarito          DocumentType = "gabarito"
	DocNaoClassificado   DocumentType = "nao_classificado"
)

// DocumentTypes lists the classifiable types in stable (lexicographic tag) order
var DocumentTypes = []DocumentType{
	DocCancelamento,
	DocConvocacao,
	DocEditalAbertura,
	DocEditalRetificacao,
	DocGabarito,
	DocHomologacao,
	DocProrrogacao,
	DocResultadoParcial,
}

// Location pins a finding to a position within the OCR text
type Location struct {
	Page   int `json:"page,omitempty"`
	Line   int `json:"line,omitempty"`
	Offset int `json:"offset"`
}

// Finding is a single classified observation about a passage of text
type Finding struct {
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Data       map[string]any `json:"data,omitempty"`
	Location   *Location      `json:"location,omitempty"`
	Context    string         `json:"context,omitempty"`
}

// ConcursoData carries the structured fields extracted from a hiring notice
type ConcursoData struct {
	EditalNumber       string   `json:"editalNumber,omitempty"`
	Positions          []string `json:"positions,omitempty"`
	Vacancies          int      `json:"vacancies,omitempty"`
	Salary             float64  `json:"salary,omitempty"`
	RegistrationPeriod string   `json:"registrationPeriod,omitempty"`
	ExamDate           string   `json:"examDate,omitempty"`
	RegistrationFee    float64  `json:"registrationFee,omitempty"`
	Institution        string   `json:"institution,omitempty"`
	Cities             []string `json:"cities,omitempty"`
	Agency             string   `json:"agency,omitempty"`
}

// IsEmpty reports whether no structured field was extracted
func (d ConcursoData) IsEmpty() bool {
	return d.EditalNumber == "" && len(d.Positions) == 0 && d.Vacancies == 0 &&
		d.Salary == 0 && d.RegistrationPeriod == "" && d.ExamDate == "" &&
		d.RegistrationFee == 0 && d.Institution == "" && len(d.Cities) == 0 &&
		d.Agency == ""
}

// ConcursoFinding specializes Finding with a document-type classification
type ConcursoFinding struct {
	Finding
	DocumentType DocumentType  `json:"documentType"`
	Concurso     *ConcursoData `json:"concurso,omitempty"`
}

// OCRResult is the text payload handed back by the external OCR provider
type OCRResult struct {
	JobID       string    `json:"jobId"`
	TerritoryID string    `json:"territoryId"`
	Date        Date      `json:"date"`
	SpiderID    string    `json:"spiderId"`
	Edition     string    `json:"edition,omitempty"`
	IsExtra     bool      `json:"isExtra,omitempty"`
	Text        string    `json:"text"`
	CompletedAt time.Time `json:"completedAt"`
}

// AnalysisSummary aggregates the findings of one gazette analysis
type AnalysisSummary struct {
	TotalFindings          int            `json:"totalFindings"`
	FindingsByType         map[string]int `json:"findingsByType"`
	HighConfidenceFindings int            `json:"highConfidenceFindings"`
	Categories             []string       `json:"categories"`
	Keywords               []string       `json:"keywords"`
}

// AnalyzerStatus is the per-analyzer outcome recorded in the bundle
type AnalyzerStatus struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"` // "success" or "failure"
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Findings int           `json:"findings"`
}

// GazetteAnalysis bundles everything the analyzers produced for one OCR job
type GazetteAnalysis struct {
	JobID      string           `json:"jobId"`
	Text       string           `json:"-"`
	Findings   []Finding        `json:"findings"`
	Concursos  []ConcursoFinding `json:"concursos,omitempty"`
	Analyzers  []AnalyzerStatus `json:"analyzers"`
	Summary    AnalysisSummary  `json:"summary"`
	Error      string           `json:"error,omitempty"`
	AnalyzedAt time.Time        `json:"analyzedAt"`
}
