package analyzer

import (
	"regexp"

	"github.com/ternarybob/diario/internal/models"
)

// patternPriority ranks document-type patterns when classifications compete
type patternPriority int

const (
	prioritySupporting patternPriority = iota
	prioritySecondary
	priorityPrimary
)

// proximitySpec controls the keyword-clustering requirement of a pattern
type proximitySpec struct {
	Required    bool
	MaxDistance int // words
	BoostNearby bool
}

// documentPattern is one entry of the document-type catalog
type documentPattern struct {
	Type                models.DocumentType
	Weight              float64
	Priority            patternPriority
	Keywords            []string
	Regexes             []*regexp.Regexp
	Exclusions          []*regexp.Regexp
	Proximity           proximitySpec
	MinKeywordsTogether int
}

// titlePattern matches document headers and carries its own base confidence
type titlePattern struct {
	Type           models.DocumentType
	Pattern        *regexp.Regexp
	BaseConfidence float64
}

// documentPatterns is the fixed classification catalog. Weights reflect how
// unambiguous each type's vocabulary is in practice; exclusions guard the
// pairs that routinely co-occur (partial results inside homologation acts,
// simplified selections posing as concursos).
var documentPatterns = []documentPattern{
	{
		Type:     models.DocEditalAbertura,
		Weight:   0.95,
		Priority: priorityPrimary,
		Keywords: []string{
			"edital de abertura", "concurso público", "inscrições",
			"provimento", "vagas",
		},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)edital\s+de\s+abertura`),
			regexp.MustCompile(`(?i)concurso\s+p[úu]blico`),
			regexp.MustCompile(`(?i)abertura\s+d[ae]s?\s+inscri[çc][õo]es`),
		},
		Exclusions: []*regexp.Regexp{
			regexp.MustCompile(`(?i)processo\s+seletivo\s+simplificado`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 150, BoostNearby: true},
		MinKeywordsTogether: 3,
	},
	{
		Type:     models.DocEditalRetificacao,
		Weight:   0.92,
		Priority: priorityPrimary,
		Keywords: []string{"retificação", "edital", "concurso"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)retifica[çc][ãa]o\s+d[oe]\s+edital`),
			regexp.MustCompile(`(?i)edital\s+de\s+retifica[çc][ãa]o`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 100, BoostNearby: true},
		MinKeywordsTogether: 2,
	},
	{
		Type:     models.DocConvocacao,
		Weight:   0.9,
		Priority: priorityPrimary,
		Keywords: []string{"convocação", "candidatos aprovados", "nomeação", "posse"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\d+[ªa°]?\s*convoca[çc][ãa]o`),
			regexp.MustCompile(`(?i)convoca[çc][ãa]o\s+d[oe]s?\s+(candidat|aprovad)`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 150, BoostNearby: true},
		MinKeywordsTogether: 1,
	},
	{
		Type:     models.DocHomologacao,
		Weight:   0.9,
		Priority: prioritySecondary,
		Keywords: []string{"homologação", "resultado final", "concurso"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)homologa[çc][ãa]o\s+d[oe]\s+resultado`),
			regexp.MustCompile(`(?i)resultado\s+final\s+d[oe]\s+concurso`),
		},
		Exclusions: []*regexp.Regexp{
			regexp.MustCompile(`(?i)resultado\s+parcial`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 150, BoostNearby: true},
		MinKeywordsTogether: 2,
	},
	{
		Type:     models.DocProrrogacao,
		Weight:   0.88,
		Priority: prioritySecondary,
		Keywords: []string{"prorrogação", "prazo", "inscrições", "validade"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)prorroga[çc][ãa]o\s+d[oe]\s+prazo`),
			regexp.MustCompile(`(?i)prorroga[çc][ãa]o\s+d[ae]\s+validade`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 100, BoostNearby: true},
		MinKeywordsTogether: 2,
	},
	{
		Type:     models.DocCancelamento,
		Weight:   0.88,
		Priority: prioritySecondary,
		Keywords: []string{"cancelamento", "revogação", "anulação", "concurso"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(cancelamento|revoga[çc][ãa]o|anula[çc][ãa]o)\s+d[oe]\s+(edital|concurso)`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 100, BoostNearby: true},
		MinKeywordsTogether: 2,
	},
	{
		Type:     models.DocResultadoParcial,
		Weight:   0.85,
		Priority: prioritySupporting,
		Keywords: []string{"resultado parcial", "classificação preliminar", "concurso"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)resultado\s+parcial`),
			regexp.MustCompile(`(?i)classifica[çc][ãa]o\s+(preliminar|provis[óo]ria)`),
		},
		Exclusions: []*regexp.Regexp{
			regexp.MustCompile(`(?i)homologa[çc][ãa]o\s+d[oe]\s+resultado`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 150, BoostNearby: true},
		MinKeywordsTogether: 1,
	},
	{
		Type:     models.DocGabarito,
		Weight:   0.85,
		Priority: prioritySupporting,
		Keywords: []string{"gabarito", "prova objetiva", "questões"},
		Regexes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)gabarito\s+(oficial|preliminar|definitivo)`),
			regexp.MustCompile(`(?i)gabarito\s+d[ae]\s+prova`),
		},
		Proximity:           proximitySpec{Required: true, MaxDistance: 100, BoostNearby: true},
		MinKeywordsTogether: 1,
	},
}

// titlePatterns match document headers; a hit inside the leading fifth of
// the text floors the type's confidence at the pattern's base confidence.
// Headers are set in caps in the gazettes, so matching stays case-sensitive:
// an inline lowercase mention must not trigger the override.
var titlePatterns = []titlePattern{
	{models.DocConvocacao, regexp.MustCompile(`^\s*\d+[ªa°]?\s*CONVOCA[ÇC][ÃA]O`), 0.88},
	{models.DocConvocacao, regexp.MustCompile(`EDITAL\s+DE\s+CONVOCA[ÇC][ÃA]O`), 0.87},
	{models.DocEditalAbertura, regexp.MustCompile(`EDITAL\s+DE\s+ABERTURA`), 0.9},
	{models.DocEditalAbertura, regexp.MustCompile(`EDITAL\s+(?:DE\s+CONCURSO\s+P[ÚU]BLICO\s+)?N[ºo°]?\s*\d+`), 0.85},
	{models.DocEditalRetificacao, regexp.MustCompile(`EDITAL\s+DE\s+RETIFICA[ÇC][ÃA]O`), 0.88},
	{models.DocHomologacao, regexp.MustCompile(`HOMOLOGA[ÇC][ÃA]O\s+D[OE]\s+RESULTADO`), 0.87},
	{models.DocProrrogacao, regexp.MustCompile(`EDITAL\s+DE\s+PRORROGA[ÇC][ÃA]O`), 0.86},
	{models.DocCancelamento, regexp.MustCompile(`(CANCELAMENTO|REVOGA[ÇC][ÃA]O)\s+D[OE]\s+(EDITAL|CONCURSO)`), 0.86},
	{models.DocResultadoParcial, regexp.MustCompile(`RESULTADO\s+PARCIAL\b`), 0.85},
	{models.DocGabarito, regexp.MustCompile(`GABARITO\s+(OFICIAL|PRELIMINAR|DEFINITIVO)`), 0.85},
}

// extractionPatterns pull structured fields out of a classified passage.
// Within each family the regexes run in declared order; first capture wins.
var extractionPatterns = map[string][]*regexp.Regexp{
	"editalNumber": {
		regexp.MustCompile(`(?i)edital\s+(?:de\s+abertura\s+)?n[ºo°]?\s*(\d+(?:/\d{4})?)`),
		regexp.MustCompile(`(?i)concurso\s+p[úu]blico\s+n[ºo°]?\s*(\d+(?:/\d{4})?)`),
	},
	"vacancies": {
		regexp.MustCompile(`(?i)(\d{1,4})\s+vagas?`),
		regexp.MustCompile(`(?i)total\s+de\s+(\d{1,4})\s+vagas?`),
	},
	"position": {
		regexp.MustCompile(`(?i)cargo\s+de\s+([A-Za-zÀ-ÿ ]{3,60}?)(?:[,.;\n]|\s+com\b)`),
		regexp.MustCompile(`(?i)para\s+o\s+cargo\s+([A-Za-zÀ-ÿ ]{3,60}?)(?:[,.;\n])`),
	},
	"salary": {
		regexp.MustCompile(`(?i)sal[áa]rio\s+(?:de\s+)?R\$\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)vencimento\s+(?:b[áa]sico\s+)?(?:de\s+)?R\$\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)remunera[çc][ãa]o\s+(?:de\s+)?R\$\s*([\d.,]+)`),
	},
	"registrationPeriod": {
		regexp.MustCompile(`(?i)inscri[çc][õo]es\s+(?:abertas\s+)?(?:de|entre)\s+(\d{2}/\d{2}/\d{4}\s+(?:a|e|at[ée])\s+\d{2}/\d{2}/\d{4})`),
		regexp.MustCompile(`(?i)per[íi]odo\s+de\s+inscri[çc][ãa]o:?\s+(\d{2}/\d{2}/\d{4}\s+(?:a|at[ée])\s+\d{2}/\d{2}/\d{4})`),
	},
	"examDate": {
		regexp.MustCompile(`(?i)prova\s+(?:objetiva\s+)?(?:ser[áa]\s+)?(?:realizada|aplicada)\s+(?:em|no\s+dia)\s+(\d{2}/\d{2}/\d{4})`),
		regexp.MustCompile(`(?i)data\s+da\s+prova:?\s+(\d{2}/\d{2}/\d{4})`),
	},
	"registrationFee": {
		regexp.MustCompile(`(?i)taxa\s+de\s+inscri[çc][ãa]o\s+(?:de\s+|no\s+valor\s+de\s+)?R\$\s*([\d.,]+)`),
		regexp.MustCompile(`(?i)valor\s+da\s+inscri[çc][ãa]o:?\s+R\$\s*([\d.,]+)`),
	},
	"institution": {
		regexp.MustCompile(`(?i)(?:organizado|executado|realizado)\s+pel[ao]\s+([A-Za-zÀ-ÿ. ]{3,80}?)(?:[,.;\n])`),
		regexp.MustCompile(`(?i)banca\s+organizadora:?\s+([A-Za-zÀ-ÿ. ]{3,80}?)(?:[,.;\n])`),
	},
	"cities": {
		regexp.MustCompile(`(?i)munic[íi]pios?\s+de\s+([A-Za-zÀ-ÿ, e]{3,120}?)(?:[.;\n])`),
	},
	"agency": {
		regexp.MustCompile(`(?i)(prefeitura\s+municipal\s+de\s+[A-Za-zÀ-ÿ ]{3,60}?)(?:[,.;\n])`),
		regexp.MustCompile(`(?i)(c[âa]mara\s+municipal\s+de\s+[A-Za-zÀ-ÿ ]{3,60}?)(?:[,.;\n])`),
	},
}
