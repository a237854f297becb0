// Package domain holds the value types shared by the LLM orchestration layer
// and the scoring engine: criteria and scores, requirement gates, rankings,
// sensitivity reports, generation requests and results, embeddings, prompt
// templates and token budgets.
//
// Types carry `validate` tags checked by the package-level validator. Most
// expose a Validate method; callers validate at the boundary where data
// enters the system (configuration files, activity inputs, CLI input) and
// the engines trust validated values afterwards.
//
// Nothing here performs I/O.
package domain
