package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/diario/internal/models"
)

func filler(words int) string {
	// Neutral filler that matches no catalog keyword
	return strings.TrimSpace(strings.Repeat("considerando o disposto na legislação vigente ", words/6+1))
}

func primaryOf(findings []models.ConcursoFinding) models.ConcursoFinding {
	if len(findings) == 0 {
		return models.ConcursoFinding{}
	}
	return findings[0]
}

func confidenceOf(findings []models.ConcursoFinding, t models.DocumentType) float64 {
	for _, f := range findings {
		if f.DocumentType == t {
			return f.Confidence
		}
	}
	return 0
}

func TestScatteredKeywordsStayBelowThreshold(t *testing.T) {
	a := NewConcursoAnalyzer()

	// The opening phrase and the concurso vocabulary sit 490 words apart:
	// no cluster of three distinct keywords fits inside the 150-word window.
	text := "edital de abertura " + filler(490) + " concurso público para provimento"
	findings := a.Classify(text)

	assert.Less(t, confidenceOf(findings, models.DocEditalAbertura), classificationFloor)
	if len(findings) > 0 {
		assert.Equal(t, models.DocNaoClassificado, primaryOf(findings).DocumentType)
	}
}

func TestClusteredKeywordsCrossThreshold(t *testing.T) {
	a := NewConcursoAnalyzer()

	text := "edital de abertura " + filler(80) + " concurso público para provimento de vagas, inscrições abertas"
	findings := a.Classify(text)

	require.NotEmpty(t, findings)
	assert.Equal(t, models.DocEditalAbertura, primaryOf(findings).DocumentType)
	assert.GreaterOrEqual(t, confidenceOf(findings, models.DocEditalAbertura), classificationFloor)
}

func TestTitleOverrideForcesConvocacao(t *testing.T) {
	a := NewConcursoAnalyzer()

	// Sparse body: the header alone must carry the classification
	text := "17ª CONVOCAÇÃO\n" + filler(300)
	findings := a.Classify(text)

	require.NotEmpty(t, findings)
	primary := primaryOf(findings)
	assert.Equal(t, models.DocConvocacao, primary.DocumentType)
	assert.GreaterOrEqual(t, primary.Confidence, 0.85)
}

func TestTitleOverrideNeverLowersConfidence(t *testing.T) {
	a := NewConcursoAnalyzer()

	// Sparse body scores ~0.57 on its own; the header floors it at 0.9
	body := "EDITAL DE ABERTURA\ninscrições e provimento de vagas"

	withTitle := confidenceOf(a.Classify(body), models.DocEditalAbertura)
	withoutTitle := confidenceOf(a.Classify(strings.TrimPrefix(body, "EDITAL DE ABERTURA\n")), models.DocEditalAbertura)

	assert.InDelta(t, 0.9, withTitle, 0.001)
	assert.Greater(t, withTitle, withoutTitle)
	assert.GreaterOrEqual(t, withoutTitle, classificationFloor)
}

func TestTitleOutsideLeadingRegionDoesNotOverride(t *testing.T) {
	a := NewConcursoAnalyzer()

	// With no keyword cluster the header alone carries the type, but only
	// when it sits inside the leading fifth of the text.
	top := a.Classify("EDITAL DE PRORROGAÇÃO\n" + filler(300))
	require.NotEmpty(t, top)
	assert.Equal(t, models.DocProrrogacao, primaryOf(top).DocumentType)
	assert.InDelta(t, 0.86, primaryOf(top).Confidence, 0.001)

	buried := a.Classify(filler(2000) + "\nEDITAL DE PRORROGAÇÃO\n" + filler(100))
	assert.Zero(t, confidenceOf(buried, models.DocProrrogacao))
}

func TestExclusionPenalty(t *testing.T) {
	a := NewConcursoAnalyzer()

	base := "homologação do resultado do concurso"
	clean := confidenceOf(a.Classify(base), models.DocHomologacao)
	poisoned := confidenceOf(a.Classify(base+". resultado parcial divulgado"), models.DocHomologacao)

	assert.InDelta(t, 0.945, clean, 0.001)
	assert.InDelta(t, 0.745, poisoned, 0.001)
	assert.InDelta(t, 0.2, clean-poisoned, 0.001)
}

func TestPriorityBreaksTies(t *testing.T) {
	a := NewConcursoAnalyzer()

	// Both a primary (convocacao) and a supporting (gabarito) type present
	text := "EDITAL DE CONVOCAÇÃO\nconvocação dos candidatos aprovados para posse. " +
		"Divulgado o gabarito oficial da prova objetiva."
	findings := a.Classify(text)

	require.NotEmpty(t, findings)
	assert.Equal(t, models.DocConvocacao, primaryOf(findings).DocumentType,
		"primary priority outranks supporting regardless of score")
}

func TestClassifyIsDeterministic(t *testing.T) {
	a := NewConcursoAnalyzer()
	text := "EDITAL DE ABERTURA\nconcurso público, inscrições de 01/02/2024 a 01/03/2024, provimento de 25 vagas"

	first := a.Classify(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Classify(text))
	}
}

func TestClassifyEmptyText(t *testing.T) {
	a := NewConcursoAnalyzer()
	assert.Empty(t, a.Classify(""))
	assert.Empty(t, a.Classify(filler(200)))
}

func TestStructuredDataExtraction(t *testing.T) {
	a := NewConcursoAnalyzer()
	text := `EDITAL DE ABERTURA
A Prefeitura Municipal de Salvador, torna público o concurso público nº 001/2024,
com abertura das inscrições no período de inscrição: 01/02/2024 a 01/03/2024,
para o provimento de 150 vagas no cargo de professor de educação básica, com
salário de R$ 4.420,55 e taxa de inscrição de R$ 120,00. A prova objetiva será
realizada em 15/04/2024. Concurso organizado pela Fundação Carlos Chagas.`

	findings := a.Classify(text)
	require.NotEmpty(t, findings)
	primary := primaryOf(findings)
	require.Equal(t, models.DocEditalAbertura, primary.DocumentType)
	require.NotNil(t, primary.Concurso)

	data := primary.Concurso
	assert.Equal(t, "001/2024", data.EditalNumber)
	assert.Equal(t, 150, data.Vacancies)
	assert.InDelta(t, 4420.55, data.Salary, 0.001)
	assert.InDelta(t, 120.0, data.RegistrationFee, 0.001)
	assert.Equal(t, "15/04/2024", data.ExamDate)
	assert.Contains(t, data.Agency, "Prefeitura Municipal de Salvador")
}

func TestParseBRNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4.420,55", 4420.55, true},
		{"120,00", 120.0, true},
		{"1.234.567,89", 1234567.89, true},
		{"150", 150, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseBRNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.001, tt.in)
		}
	}
}

func TestSplitCityList(t *testing.T) {
	cities := splitCityList("Salvador, Camaçari e Lauro de Freitas")
	assert.Equal(t, []string{"Salvador", "Camaçari", "Lauro de Freitas"}, cities)
}

func TestBestGroupWindowing(t *testing.T) {
	hits := []keywordHit{
		{Keyword: "a", WordIndex: 0},
		{Keyword: "b", WordIndex: 40},
		{Keyword: "c", WordIndex: 45},
		{Keyword: "a", WordIndex: 300},
	}

	group := bestGroup(hits, 50, 3)
	require.NotNil(t, group)
	assert.Equal(t, 3, group.Distinct)
	assert.Equal(t, 45, group.Span)

	assert.Nil(t, bestGroup(hits, 10, 3), "window too small for three distinct keywords")
	assert.Nil(t, bestGroup(nil, 50, 1))
}

func TestProximityScoreBands(t *testing.T) {
	assert.Equal(t, 1.0, proximityScore(50))
	assert.Equal(t, 0.8, proximityScore(51))
	assert.Equal(t, 0.6, proximityScore(500))
	assert.Equal(t, 0.3, proximityScore(501))

	assert.Equal(t, 1.5, boostMultiplier(10))
	assert.Equal(t, 0.8, boostMultiplier(1000))
}
