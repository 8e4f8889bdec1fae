package gcp

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// --- Evaluator persona shared by both passes ---
const EvaluatorSystemPrompt = `أنت مقيّم خبير صارم لأداء المعلمين. تعتمد فقط على الأدلة المرفقة، ولا تمنح أي درجة دون دليل ملموس. لا تفترض وجود ما لم تره، ولا تستنتج أداءً غير موثق.`

// RubricPrompt describes the eleven criteria and the 1-5 scale.
var RubricPrompt = buildRubricPrompt()

func buildRubricPrompt() string {
	prompt := "معايير التقييم (رقم المعيار: الاسم - الوزن):\n"
	for _, c := range models.Criteria {
		prompt += fmt.Sprintf("%d: %s - %g%%\n", c.ID, c.Label, c.Weight)
	}
	prompt += `
سلم الدرجات لكل معيار:
5 = الدليل موجود وحديث ومبتكر ومكتمل.
4 = الدليل موجود لكنه تقليدي.
3 = الدليل موجود لكنه ناقص أو غير واضح.
2 = الدليل ضعيف جداً.
1 = لا يوجد أي دليل.
غياب الدليل يعني الدرجة 1 إلزامياً، ولا يجوز ترك أي معيار دون درجة.`
	return prompt
}

// --- Partial (per-file) pass ---
const PartialUserPrompt = `حلّل الملف المرفق فقط. اذكر بإيجاز ما يقدمه من أدلة، وحدد أرقام المعايير التي يدعمها وقوة كل دليل. إذا لم يتضمن الملف أي دليل مفيد فاذكر ذلك صراحة. أجب بنص عادي دون تنسيق JSON.`

// --- Final (aggregate) pass ---
const FinalUserPrompt = `بناءً على الأدلة أدناه فقط، قيّم المعلم وفق المعايير الأحد عشر. أعد كائن JSON فقط بالحقول:
- "scores": كائن مفاتيحه أرقام المعايير من "1" إلى "11" وقيمه أعداد صحيحة من 1 إلى 5.
- "justifications": مصفوفة من 11 نصاً بترتيب المعايير، تبرر كل درجة بالدليل.
- "strengths": مصفوفة نقاط القوة.
- "weaknesses": مصفوفة نقاط الضعف.
- "recommendation": توصية ختامية واحدة.`

// ContentGenerator is the slice of *genai.GenerativeModel the pipeline uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexConfig selects the model used for both passes.
type VertexConfig struct {
	ProjectID string
	Region    string
	ModelName string
}

// VertexClient holds the pre-configured evaluator models.
type VertexClient struct {
	PartialModel *genai.GenerativeModel
	FinalModel   *genai.GenerativeModel
	baseClient   *genai.Client
}

// NewVertexClient creates a new client holding both evaluator models.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	systemInstruction := &genai.Content{
		Parts: []genai.Part{genai.Text(EvaluatorSystemPrompt), genai.Text(RubricPrompt)},
	}

	partialModel := baseClient.GenerativeModel(cfg.ModelName)
	partialModel.SystemInstruction = systemInstruction
	partialModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	partialModel.SafetySettings = safetySettings()

	finalModel := baseClient.GenerativeModel(cfg.ModelName)
	finalModel.SystemInstruction = systemInstruction
	finalModel.GenerationConfig = genai.GenerationConfig{
		// Structured output is mandatory for the final judgment.
		ResponseMIMEType: "application/json",
		ResponseSchema:   EvaluationSchema(),
		Temperature:      genai.Ptr[float32](0.0),
	}
	finalModel.SafetySettings = safetySettings()

	return &VertexClient{
		PartialModel: partialModel,
		FinalModel:   finalModel,
		baseClient:   baseClient,
	}, nil
}

func safetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
	}
}

// EvaluationSchema is the response schema the final pass must satisfy.
func EvaluationSchema() *genai.Schema {
	scoreProps := make(map[string]*genai.Schema, models.CriterionCount)
	required := make([]string, 0, models.CriterionCount)
	for _, c := range models.Criteria {
		key := strconv.Itoa(c.ID)
		scoreProps[key] = &genai.Schema{Type: genai.TypeInteger, Description: c.Label}
		required = append(required, key)
	}

	stringArray := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeArray, Description: desc, Items: &genai.Schema{Type: genai.TypeString}}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scores":         {Type: genai.TypeObject, Properties: scoreProps, Required: required},
			"justifications": stringArray("one justification per criterion, in criterion order"),
			"strengths":      stringArray("strengths"),
			"weaknesses":     stringArray("weaknesses"),
			"recommendation": {Type: genai.TypeString},
		},
		Required: []string{"scores", "justifications", "strengths", "weaknesses", "recommendation"},
	}
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
