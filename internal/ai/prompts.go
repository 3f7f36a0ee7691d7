package ai

// SystemPrompts contains all system-level instructions for AI interactions
type SystemPrompts struct {
	AnalyzeCV        string
	CompareCandidate string
}

// UserPrompts contains user-level prompts with placeholders for dynamic content.
//
// AnalyzeCV receives the CV text. CompareCandidate receives, in order, the job
// description, name, years of experience, summary and comma-joined skills;
// custom templates may pick them with explicit indexes such as %[3]s.
type UserPrompts struct {
	AnalyzeCV        string
	CompareCandidate string
}

// DefaultSystemPrompts provides the default system instructions
var DefaultSystemPrompts = SystemPrompts{
	AnalyzeCV: `You are an expert HR recruitment assistant. You read CVs carefully and extract facts exactly as written.

- NEVER invent employers, qualifications, or skills that the CV does not mention
- When a value cannot be found, leave the field empty rather than guessing
- Keep summaries neutral and factual`,

	CompareCandidate: `You are an expert HR interviewer who scores how well a candidate fits a job description.

- Base the score only on the job description and the candidate profile provided
- Reward concrete, relevant experience over keyword overlap
- Keep the justification to a single, specific sentence`,
}

// DefaultUserPrompts provides the default user prompt templates
var DefaultUserPrompts = UserPrompts{
	AnalyzeCV: `Analyze the following CV text and extract the information into a JSON object.

CV Text:
---
%s
---

Extract the following fields:
- name: The full name of the candidate.
- totalExperienceYears: The total years of professional experience, as a number. If not found, set to 0.
- companies: A single string listing the most recent 2-3 companies.
- education: A single string summarizing the highest level of education (e.g., "M.Sc. in Computer Science").
- discipline: The primary professional field (e.g., "Software Engineering", "Data Science", "Project Management").
- industry: The primary industry the candidate has worked in (e.g., "Technology", "Finance", "Healthcare").
- summary: A 2-3 sentence professional summary of the candidate.
- skills: An array of the top 10-15 most relevant technical and soft skills.`,

	CompareCandidate: `Compare the following Job Description with the Candidate's Profile.

Job Description:
---
%s
---

Candidate Profile:
- Name: %s
- Experience: %s years
- Summary: %s
- Skills: %s
---

Provide:
1. "score": An integer from 0 to 100 representing how well the candidate matches the job description.
2. "justification": A concise, one-sentence justification that references key skills or experience.`,
}

// PromptConfig holds configuration for customizable prompts
type PromptConfig struct {
	SystemPrompts SystemPrompts `json:"systemPrompts"`
	UserPrompts   UserPrompts   `json:"userPrompts"`
}

// GetDefaultPromptConfig returns the default prompt configuration
func GetDefaultPromptConfig() PromptConfig {
	return PromptConfig{
		SystemPrompts: DefaultSystemPrompts,
		UserPrompts:   DefaultUserPrompts,
	}
}
