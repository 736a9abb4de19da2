package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"askdb-go/internal/catalog"
)

// 模板名称
const (
	TemplateSQL      = "sql"
	TemplateHistoric = "historic"
)

// SQLGeneratorSystemPrompt SQL生成阶段的系统消息
const SQLGeneratorSystemPrompt = `You are a strict SQL generator for PostgreSQL.
- Use only the provided schema.
- Only SELECT queries; never mutate data.
- Quote mixed-case identifiers with double quotes.
- Use $ parameters for all user input.
- Return only JSON: {sql, explanation, parameters, entityTypes}.`

// AnswerSystemPrompt 回答合成阶段的系统消息
const AnswerSystemPrompt = `You are the data assistant of the company workspace.
- Answer only with relevant information found in the provided results.
- Never mention or describe the JSON, the SQL query, ids, the tables that were searched, the totalResults field, or how the information was obtained. Do not say things like "in the provided JSON" or "the query searched".
- If there is no relevant data (results empty or totalResults = 0), reply in the user's language with something brief such as "I found no relevant data for this question." and add nothing else.
- When you receive lists of results, use and mention ALL the elements delivered in results (do not cut them to the first 10); keep names and properties exactly as they come.
- Always use the same language as the user's question (if the question is in English, answer in English; if it is in Spanish, answer in Spanish; only the language of the question matters).
- Never use variable names such as total_tasks, total-tasks or total.tasks in the answer; use natural language instead.
- Add a brief human touch (for example "Here is what I found" or "Let me know if you need anything else") without inventing facts beyond the data.`

// HistoricSystemPrompt 会话历史问答的系统消息
const HistoricSystemPrompt = `You are the assistant of the current conversation.
- Answer questions about this conversation only from the history you are given.
- Do not invent earlier questions or answers.
- Reply in the same language as the user's question.`

// DocumentSystemPrompt 文档向量检索问答的系统消息
const DocumentSystemPrompt = `You are the AI agent of the company workspace. Handle documents and data from the context sections you are given.
- If you lack information about the topic, summarize what you do have and mention that you were made to assist employees.
- Never mention embeddings, similarity scores or how the documents were retrieved.
- Always answer in the same language the user asked the question.`

// SQLGenerationPrompt 自然语言转SQL的用户消息模板
const SQLGenerationPrompt = `You are an expert PostgreSQL query writer. Convert the user question into a SAFE SELECT query.

DATABASE SCHEMA (use exactly these tables/columns/enums, do NOT invent new ones):
{{.DatabaseSchema}}

-----------------------------------------------------------------------

USER QUESTION:
"""{{.UserQuery}}"""

-----------------------------------------------------------------------

RESPONSE FORMAT (JSON ONLY, no prose):
{"sql": string, "explanation": string, "parameters": array, "entityTypes": array}

-----------------------------------------------------------------------

IMPORTANT EXCEPTION:
If the user asks about the current chat session or about their own user info, do NOT query the database. Instead return HISTORIC (no JSON, no query, just that word). It is a flag that routes the question to the conversation history.

-----------------------------------------------------------------------

CORE RULES:
1) Only SELECT queries. Never use INSERT/UPDATE/DELETE/UPSERT/ALTER.
2) Quote every table/column that contains capitals with double quotes (e.g. "User", "firstName").
3) Use parameter placeholders $1, $2, ... for any user-provided values. Do NOT interpolate values directly. The parameters array must have exactly one value per placeholder.
4) Always add LIMIT 100 unless the question explicitly asks for a different limit.
5) For aggregates, include all non-aggregated columns in GROUP BY.
6) Prefer explicit column lists instead of SELECT * when possible.
7) Use ILIKE with %...% for fuzzy text matches.
8) For joins, use LEFT JOIN when the relationship is optional.
9) Always return valid JSON with all 4 fields: sql, explanation, parameters, entityTypes.
10) NEVER use the CONCAT() function. ALWAYS use the || operator: COALESCE("firstName", '') || ' ' || COALESCE("lastName", '').

-----------------------------------------------------------------------

JOINS AND RELATIONSHIPS:
- Treat any column ending with Id as a foreign key (e.g. "projectId" -> "Project"."id").
- Join through obvious bridges when combining entities (e.g. tasks with users via assigneeId/creatorId).
- Never fabricate relationships that do not exist in the schema.
- Preferred join map (use LEFT JOIN when optional):
{{.JoinMap}}

-----------------------------------------------------------------------

FILTERS AND CONDITIONS:
- Respect enum values exactly as defined in the schema. Map common synonyms (e.g. done/completed -> DONE/COMPLETED).
- Handle numeric and date comparisons (>, <, BETWEEN) when the user specifies ranges like "last week", "past 30 days", "greater than 5".
- Combine multiple intents with AND/OR as implied by the question; avoid dropping conditions.
- For people names, match firstName, lastName and email using ILIKE.

ENUM / STATUS MAPPINGS:
- Task/Project statuses: DONE/COMPLETED -> 'DONE'; IN_PROGRESS/EN PROGRESO -> 'IN_PROGRESS'; TODO/PENDING -> 'TODO' (or the relevant ProjectStatus values).
- Priority: alta/high -> 'HIGH'; media -> 'MEDIUM'; baja/low -> 'LOW'.
- Use exact enum casing from the schema; do not invent values.

DATE / RANGE HANDLING:
- "last month" / "ultimo mes" -> column >= date_trunc('month', CURRENT_DATE) - interval '1 month'
- "last 7 days" / "ultimos 7 dias" -> column >= CURRENT_DATE - interval '7 days'
- "this year" / "este ano" -> column >= date_trunc('year', CURRENT_DATE)
- Only add a date filter when the user requests a time window.

COMMON METRIC PATTERNS:
- Counts by status: COUNT(*) FILTER (WHERE status = 'IN_PROGRESS')
- Ranks: RANK() OVER (ORDER BY metric DESC NULLS LAST)
- Time: SUM("seconds")/3600.0 for hours. Money: SUM("amountCents")/100.0 for currency.
- Task completion: join "Task" -> "ProjectTaskStatus" and treat category = 'DONE' as completed.

IMPORTANT NOTES:
{{.Notes}}

EXAMPLES:
- "how many users are on the platform?"
  {"sql": "SELECT COUNT(*) AS count FROM \"User\"", "explanation": "Counts all users", "parameters": [], "entityTypes": ["user"]}
- "show me active projects"
  {"sql": "SELECT id, name, status FROM \"Project\" WHERE status = 'IN_PROGRESS' LIMIT 100", "explanation": "Shows active projects", "parameters": [], "entityTypes": ["project"]}
- "find tasks assigned to John"
  {"sql": "SELECT t.*, u.\"firstName\", u.\"lastName\" FROM \"Task\" t JOIN \"User\" u ON t.\"assigneeId\" = u.id WHERE u.\"firstName\" ILIKE $1 OR u.\"lastName\" ILIKE $1 LIMIT 100", "explanation": "Tasks assigned to users named John", "parameters": ["%John%"], "entityTypes": ["task","user"]}
- "users with email containing gmail"
  {"sql": "SELECT id, \"firstName\", \"lastName\", email FROM \"User\" WHERE email ILIKE $1 LIMIT 100", "explanation": "Finds users with gmail addresses", "parameters": ["%gmail%"], "entityTypes": ["user"]}
- "what was my first question?"
  HISTORIC
Return only the JSON object.`

// HistoricPrompt 基于会话历史回答的用户消息模板
const HistoricPrompt = `You will receive the history of the current conversation and the user's current question.
- Use only the history and the current question to answer.
- Answer concisely and clearly.
- If the user asks about their first question, look at the beginning of the history.
- Always answer in the same language as the user's question.

CONVERSATION HISTORY:
{{.History}}

CURRENT QUESTION:
{{.CurrentMessage}}

- Always answer starting from the current question and the history provided.`

// PromptTemplate 命名的提示词模板
type PromptTemplate struct {
	template    prompts.PromptTemplate
	name        string
	description string
}

// PromptTemplateManager 提示词模板管理器
type PromptTemplateManager struct {
	templates map[string]*PromptTemplate
}

// NewPromptTemplateManager 创建提示词模板管理器并注册内置模板
func NewPromptTemplateManager() *PromptTemplateManager {
	manager := &PromptTemplateManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.RegisterTemplate(TemplateSQL, SQLGenerationPrompt, "自然语言转SQL",
		"DatabaseSchema", "UserQuery", "JoinMap", "Notes")
	manager.RegisterTemplate(TemplateHistoric, HistoricPrompt, "会话历史问答",
		"History", "CurrentMessage")
	return manager
}

// RegisterTemplate 注册提示词模板，同名模板会被覆盖
func (ptm *PromptTemplateManager) RegisterTemplate(name, content, description string, variables ...string) {
	ptm.templates[name] = &PromptTemplate{
		template:    prompts.NewPromptTemplate(content, variables),
		name:        name,
		description: description,
	}
}

// Format 使用指定模板渲染提示词
func (ptm *PromptTemplateManager) Format(name string, values map[string]any) (string, error) {
	tpl, ok := ptm.templates[name]
	if !ok {
		return "", fmt.Errorf("模板类型不存在: %s", name)
	}
	prompt, err := tpl.template.Format(values)
	if err != nil {
		return "", fmt.Errorf("提示词格式化失败: %w", err)
	}
	return prompt, nil
}

// ListTemplates 列出所有可用模板
func (ptm *PromptTemplateManager) ListTemplates() map[string]string {
	result := make(map[string]string, len(ptm.templates))
	for name, tpl := range ptm.templates {
		result[name] = tpl.description
	}
	return result
}

// BuildSQLPrompt 渲染SQL生成提示词
func (ptm *PromptTemplateManager) BuildSQLPrompt(schema *catalog.Schema, question string) (string, error) {
	schemaJSON, err := schema.JSON()
	if err != nil {
		return "", err
	}
	notes := make([]string, len(schema.Notes))
	for i, n := range schema.Notes {
		notes[i] = fmt.Sprintf("%d. %s", i+1, n)
	}
	return ptm.Format(TemplateSQL, map[string]any{
		"DatabaseSchema": schemaJSON,
		"UserQuery":      question,
		"JoinMap":        joinMap(schema),
		"Notes":          strings.Join(notes, "\n"),
	})
}

// BuildHistoricPrompt 渲染会话历史提示词
func (ptm *PromptTemplateManager) BuildHistoricPrompt(transcript, question string) (string, error) {
	return ptm.Format(TemplateHistoric, map[string]any{
		"History":        transcript,
		"CurrentMessage": question,
	})
}

// joinMap 将外键关系按被引用列分组，例如
// "  - Project.id ↔ Task.projectId | Sprint.projectId"
func joinMap(schema *catalog.Schema) string {
	grouped := make(map[string][]string)
	order := make([]string, 0)
	for _, r := range schema.Relationships {
		target := r.RefTable + "." + r.RefColumn
		if _, ok := grouped[target]; !ok {
			order = append(order, target)
		}
		grouped[target] = append(grouped[target], r.Table+"."+r.Column)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(grouped[order[i]]) > len(grouped[order[j]])
	})

	lines := make([]string, len(order))
	for i, target := range order {
		lines[i] = fmt.Sprintf("  - %s ↔ %s", target, strings.Join(grouped[target], " | "))
	}
	return strings.Join(lines, "\n")
}
