package domain

const NoDocumentsAnswer = "No documents found for this organization."

const FallbackAnswer = "Apologies, I could not process the request based on the current document context."

type ChatRequest struct {
	Tenant Tenant
	User   User
	Query  string
}

type ChatAnswer struct {
	Answer   string `json:"answer"`
	RoleUsed Role   `json:"role_used"`
	Sources  int    `json:"sources"`
}
