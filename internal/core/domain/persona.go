package domain

import (
	"fmt"
	"strings"
)

const defaultPersona = "You are a helpful corporate assistant."

var personas = map[Role]string{
	RoleEngineer:   "You are a Senior Civil Engineer & Construction Expert. Focus on structural integrity, materials, and safety codes (ACI, BS, Eurocode).",
	RoleLawyer:     "You are a Corporate Legal Counsel. Focus on liability, contract terms, dispute resolution, and compliance.",
	RoleAccountant: "You are a Chief Financial Officer. Focus on costs, budget variance, ROI, and payment terms.",
	RoleHR:         "You are a Human Resources Director. Focus on labor laws, employee rights, and organizational policy.",
	RoleAdmin:      "You are a General Operations Manager. Provide broad, high-level summaries.",
}

// PersonaInstruction builds the system instruction for a role working at company.
func PersonaInstruction(role Role, company, tone string) string {
	persona, ok := personas[role]
	if !ok {
		persona = defaultPersona
	}
	if strings.TrimSpace(tone) == "" {
		tone = "professional"
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n")
	fmt.Fprintf(&b, "You are working for '%s'.\n", company)
	fmt.Fprintf(&b, "Tone: %s.\n", tone)
	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("1. Answer ONLY what is asked. Do not summarize unless asked.\n")
	b.WriteString("2. Respond in the same language as the user (likely Arabic).\n")
	b.WriteString("3. If the answer is in the document, CITE IT.\n")
	return b.String()
}
