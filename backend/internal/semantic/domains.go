package semantic

// Domain names used for classification
const (
	DomainProgramming  = "programming"
	DomainAIML         = "ai_ml"
	DomainSystemDesign = "system_design"
	DomainData         = "data"
	DomainFrontend     = "frontend"
	DomainBackend      = "backend"
	DomainDevOps       = "devops"
	DomainSecurity     = "security"
)

// minDomainScore is the number of domain keywords a note needs to be classified
const minDomainScore = 2

type domain struct {
	name     string
	keywords []string
}

// domains is scanned in order; on equal scores the earlier entry wins
var domains = []domain{
	{DomainProgramming, []string{"code", "function", "class", "method", "variable", "api", "implementation", "algorithm", "debug", "compile"}},
	{DomainAIML, []string{"ai", "machine", "learning", "model", "neural", "training", "dataset", "prediction", "classification", "embedding"}},
	{DomainSystemDesign, []string{"system", "architecture", "design", "pattern", "component", "service", "infrastructure", "scalability", "performance"}},
	{DomainData, []string{"data", "database", "query", "storage", "analysis", "pipeline", "etl", "warehouse", "schema", "migration"}},
	{DomainFrontend, []string{"ui", "ux", "component", "react", "vue", "css", "html", "interface", "responsive", "design"}},
	{DomainBackend, []string{"server", "api", "endpoint", "authentication", "authorization", "rest", "graphql", "microservice", "deployment"}},
	{DomainDevOps, []string{"docker", "kubernetes", "ci", "cd", "deployment", "pipeline", "monitoring", "automation", "infrastructure"}},
	{DomainSecurity, []string{"security", "encryption", "authentication", "vulnerability", "attack", "defense", "audit", "compliance", "password"}},
}

// ClassifyDomain returns the domain sharing the most keywords with the set.
// ok is false when no domain reaches minDomainScore.
func ClassifyDomain(keywords KeywordSet) (name string, ok bool) {
	best := 0
	for _, d := range domains {
		score := 0
		for _, word := range d.keywords {
			if keywords.Has(word) {
				score++
			}
		}
		if score > best {
			best = score
			name = d.name
		}
	}
	if best < minDomainScore {
		return "", false
	}
	return name, true
}
