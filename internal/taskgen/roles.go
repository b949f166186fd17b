package taskgen

import (
	"fmt"
	"strings"

	"github.com/spboyer/staffeval/internal/models"
)

// Built-in role identifiers.
const (
	RoleSecretary      = "secretary"
	RoleCritic         = "critic"
	RoleAnalyst        = "analyst"
	RolePromptEngineer = "prompt_engineer"
)

// maxPromptRewrites caps how many existing prompts become rewrite tasks.
const maxPromptRewrites = 3

// Secretary evaluates summarizing, drafting and organizing work.
type Secretary struct{}

var secretaryHints = map[string]string{
	"summarization":       "Captures every decision and owner; no invented facts; shorter than the source.",
	"communication":       "Polite, direct, answers the question asked, correct register.",
	"organization":        "Realistic ordering, explicit times, conflicts resolved.",
	"attention_to_detail": "Every action item from the source, with owner and date when present.",
	"prioritization":      "Urgent and important items first, with a one-line reason per item.",
}

// GenerateTasks implements Generator
func (Secretary) GenerateTasks(ctx Context) ([]Task, error) {
	source := Text{
		EN: "Team sync notes: Anna will send the budget draft by Friday. Design review moves to Tuesday 10:00. Ivan asked for access to the analytics dashboard. Next sync is in two weeks.",
		RU: "Заметки встречи: Анна пришлёт черновик бюджета к пятнице. Дизайн-ревью переносится на вторник 10:00. Иван просил доступ к дашборду аналитики. Следующая встреча через две недели.",
	}
	sourceKind := models.BaselineNone
	baseline := ""
	if ex, ok := PickExcerpt(ctx.Rand(), ctx.Knowledge); ok {
		source = Text{EN: ex.Text, RU: ex.Text}
		sourceKind = models.BaselineKnowledge
		baseline = ex.Text
	}

	return []Task{
		{
			TaskType:       "summarize",
			Competency:     "summarization",
			BaselineSource: sourceKind,
			Baseline:       baseline,
			Prompt: Text{
				EN: "Summarize the following for a busy executive in at most five bullet points.\n\n" + source.EN,
				RU: "Кратко изложите следующее для занятого руководителя, не более пяти пунктов.\n\n" + source.RU,
			},
		},
		{
			TaskType:       "draft_reply",
			Competency:     "communication",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: fmt.Sprintf("A partner asks to move tomorrow's meeting because of a conflict. Draft a reply on behalf of the team, keeping in mind your duty: %s.", ctx.Duty(0, "managing the calendar")),
				RU: fmt.Sprintf("Партнёр просит перенести завтрашнюю встречу из-за накладки. Подготовьте ответ от имени команды с учётом вашей обязанности: %s.", ctx.Duty(0, "ведение календаря")),
			},
		},
		{
			TaskType:       "schedule",
			Competency:     "organization",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "Plan a day with these items: 1h budget review, 30m call with legal (only after 14:00), 2h focus block, lunch. Working hours 9:00-18:00. Output a timetable.",
				RU: "Составьте план дня: 1 ч обзор бюджета, 30 мин звонок с юристами (только после 14:00), 2 ч сосредоточенной работы, обед. Рабочее время 9:00-18:00. Выведите расписание.",
			},
		},
		{
			TaskType:       "extract_actions",
			Competency:     "attention_to_detail",
			BaselineSource: sourceKind,
			Baseline:       baseline,
			Prompt: Text{
				EN: "Extract every action item from the text below as a table with columns: action, owner, due date.\n\n" + source.EN,
				RU: "Выпишите все поручения из текста ниже в виде таблицы: действие, ответственный, срок.\n\n" + source.RU,
			},
		},
		{
			TaskType:       "prioritize",
			Competency:     "prioritization",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "Your inbox has: a contract expiring today, a lunch invitation, a security alert, and a request for quarterly numbers due next week. Order them and justify each position in one line.",
				RU: "Во входящих: договор, истекающий сегодня, приглашение на обед, предупреждение безопасности и запрос квартальных цифр к следующей неделе. Расставьте приоритеты и обоснуйте каждый одной строкой.",
			},
		},
	}, nil
}

// EvaluationHint implements Generator
func (Secretary) EvaluationHint(competency string) string {
	return hintFrom(secretaryHints, competency)
}

// Critic evaluates review and objection work.
type Critic struct{}

var criticHints = map[string]string{
	"critical_thinking": "Finds the weakest assumption and says why it matters.",
	"rigor":             "Concrete, checkable flaws instead of general impressions.",
	"objectivity":       "Argues the other side fairly before concluding.",
	"calibration":       "Scores match the stated rubric and are neither inflated nor harsh.",
}

// GenerateTasks implements Generator
func (Critic) GenerateTasks(ctx Context) ([]Task, error) {
	claim := Text{
		EN: "Our new onboarding flow doubled sign-ups, so we should remove the old one immediately.",
		RU: "Новый онбординг удвоил регистрации, поэтому старый нужно немедленно убрать.",
	}
	kind := models.BaselineNone
	baseline := ""
	if ex, ok := PickExcerpt(ctx.Rand(), ctx.Knowledge); ok {
		claim = Text{EN: ex.Text, RU: ex.Text}
		kind = models.BaselineKnowledge
		baseline = ex.Text
	}

	return []Task{
		{
			TaskType:       "review",
			Competency:     "critical_thinking",
			BaselineSource: kind,
			Baseline:       baseline,
			Prompt: Text{
				EN: "Review the statement below. Identify its weakest assumption and what evidence would settle it.\n\n" + claim.EN,
				RU: "Оцените утверждение ниже. Найдите самое слабое допущение и какие данные его проверят.\n\n" + claim.RU,
			},
		},
		{
			TaskType:       "find_flaws",
			Competency:     "rigor",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "A plan says: 'Ship on Friday, test over the weekend, announce Monday.' List the concrete failure modes.",
				RU: "В плане сказано: «Выпускаем в пятницу, тестируем в выходные, объявляем в понедельник». Перечислите конкретные риски.",
			},
		},
		{
			TaskType:       "counter_argument",
			Competency:     "objectivity",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: fmt.Sprintf("Argue for and then against this proposal, then conclude: %s.", ctx.Duty(0, "hiring a second reviewer for every change")),
				RU: fmt.Sprintf("Приведите аргументы за и против этого предложения, затем сделайте вывод: %s.", ctx.Duty(0, "назначать второго ревьюера на каждое изменение")),
			},
		},
		{
			TaskType:       "score_rubric",
			Competency:     "calibration",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "Score this answer from 1 to 10 for clarity and correctness, with one sentence each: 'The capital of Australia is Sydney, a large coastal city.'",
				RU: "Оцените ответ от 1 до 10 по ясности и правильности, по одному предложению: «Столица Австралии — Сидней, крупный прибрежный город».",
			},
		},
	}, nil
}

// EvaluationHint implements Generator
func (Critic) EvaluationHint(competency string) string {
	return hintFrom(criticHints, competency)
}

// Analyst evaluates working with numbers and turning them into decisions.
type Analyst struct{}

var analystHints = map[string]string{
	"analysis":        "Correct arithmetic and the right comparison base.",
	"insight":         "Goes beyond restating numbers to say what changed and why it matters.",
	"risk_assessment": "Names likelihood and impact, not just the risk.",
	"actionability":   "A recommendation someone could execute tomorrow.",
}

// GenerateTasks implements Generator
func (Analyst) GenerateTasks(ctx Context) ([]Task, error) {
	data := "Q1 revenue 120k, Q2 138k, Q3 131k, Q4 162k. Churn: 4%, 3.5%, 5%, 3%."
	kind := models.BaselineNone
	baseline := ""
	if ex, ok := PickExcerpt(ctx.Rand(), ctx.Knowledge); ok {
		data = ex.Text
		kind = models.BaselineKnowledge
		baseline = ex.Text
	}

	return []Task{
		{
			TaskType:       "data_summary",
			Competency:     "analysis",
			BaselineSource: kind,
			Baseline:       baseline,
			Prompt: Text{
				EN: "Summarize the key figures below and compute any growth rates that matter.\n\n" + data,
				RU: "Кратко опишите ключевые показатели ниже и посчитайте важные темпы роста.\n\n" + data,
			},
		},
		{
			TaskType:       "trend",
			Competency:     "insight",
			BaselineSource: kind,
			Baseline:       baseline,
			Prompt: Text{
				EN: "What is the single most important trend in this data, and what is a plausible cause?\n\n" + data,
				RU: "Какой самый важный тренд в этих данных и какова вероятная причина?\n\n" + data,
			},
		},
		{
			TaskType:       "risk",
			Competency:     "risk_assessment",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: fmt.Sprintf("List the top three risks to this duty over the next quarter with likelihood and impact: %s.", ctx.Duty(0, "hitting the annual revenue target")),
				RU: fmt.Sprintf("Назовите три главных риска для этой задачи на следующий квартал с вероятностью и влиянием: %s.", ctx.Duty(0, "выполнение годового плана по выручке")),
			},
		},
		{
			TaskType:       "recommendation",
			Competency:     "actionability",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "Given flat revenue and rising support costs, recommend one action with an owner, a metric and a deadline.",
				RU: "При стабильной выручке и растущих затратах на поддержку предложите одно действие с ответственным, метрикой и сроком.",
			},
		},
	}, nil
}

// EvaluationHint implements Generator
func (Analyst) EvaluationHint(competency string) string {
	return hintFrom(analystHints, competency)
}

// PromptEngineer evaluates rewriting the prompts the role already uses. One
// rewrite task is produced per existing prompt (up to three), each with the
// current prompt as baseline.
type PromptEngineer struct{}

var promptEngineerHints = map[string]string{
	"prompt_quality":     "The rewrite is measurably clearer than the baseline and keeps its intent.",
	"instruction_design": "Explicit role, constraints, output format and an example.",
	"diagnosis":          "Names the specific ambiguity that would produce bad output.",
}

// GenerateTasks implements Generator
func (PromptEngineer) GenerateTasks(ctx Context) ([]Task, error) {
	var tasks []Task
	for i, p := range ctx.Prompts {
		if i == maxPromptRewrites {
			break
		}
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		tasks = append(tasks, Task{
			TaskType:       "improve_prompt",
			Competency:     "prompt_quality",
			BaselineSource: models.BaselineCurrentValue,
			Baseline:       p.Content,
			Prompt: Text{
				EN: fmt.Sprintf("Rewrite the prompt %q so it produces more reliable output. Return only the new prompt.\n\n%s", p.Name, p.Content),
				RU: fmt.Sprintf("Перепишите промпт %q, чтобы результат был надёжнее. Верните только новый промпт.\n\n%s", p.Name, p.Content),
			},
		})
	}

	tasks = append(tasks,
		Task{
			TaskType:       "design_prompt",
			Competency:     "instruction_design",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: fmt.Sprintf("Write a system prompt for an assistant whose duty is: %s.", ctx.Duty(0, "answering customer billing questions")),
				RU: fmt.Sprintf("Напишите системный промпт для ассистента, чья обязанность: %s.", ctx.Duty(0, "ответы на вопросы клиентов по оплате")),
			},
		},
		Task{
			TaskType:       "critique_prompt",
			Competency:     "diagnosis",
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "What will go wrong with this prompt and why: 'Write something good about our product.'",
				RU: "Что пойдёт не так с этим промптом и почему: «Напиши что-нибудь хорошее о нашем продукте».",
			},
		},
	)
	return tasks, nil
}

// EvaluationHint implements Generator
func (PromptEngineer) EvaluationHint(competency string) string {
	return hintFrom(promptEngineerHints, competency)
}
