package models

// Criterion is one of the fixed performance dimensions a submission is
// graded against. Weight is a percentage of the final grade.
type Criterion struct {
	ID     int     `json:"id" firestore:"id"`
	Label  string  `json:"label" firestore:"label"`
	Weight float64 `json:"weight" firestore:"weight"`
}

// CriterionCount is the number of rubric criteria every evaluation scores.
const CriterionCount = 11

// MaxCriterionScore is the top of the 1-5 rubric scale.
const MaxCriterionScore = 5

// Criteria is the rubric in display order. Weights sum to 100.
var Criteria = []Criterion{
	{ID: 1, Label: "أداء الواجبات الوظيفية", Weight: 10},
	{ID: 2, Label: "التفاعل مع المجتمع المهني", Weight: 10},
	{ID: 3, Label: "التفاعل مع أولياء الأمور", Weight: 10},
	{ID: 4, Label: "التنويع في استراتيجيات التدريس", Weight: 10},
	{ID: 5, Label: "تحسين نتائج المتعلمين", Weight: 10},
	{ID: 6, Label: "إعداد وتنفيذ خطة التعلم", Weight: 10},
	{ID: 7, Label: "توظيف تقنيات ووسائل التعلم المناسبة", Weight: 10},
	{ID: 8, Label: "تهيئة البيئة التعليمية", Weight: 5},
	{ID: 9, Label: "الإدارة الصفية", Weight: 5},
	{ID: 10, Label: "تحليل نتائج المتعلمين وتشخيص مستوياتهم", Weight: 10},
	{ID: 11, Label: "تنوع أساليب التقويم", Weight: 10},
}

// TotalWeight sums the weights of all criteria.
func TotalWeight() float64 {
	var total float64
	for _, c := range Criteria {
		total += c.Weight
	}
	return total
}

// CriterionByID looks up a criterion by its 1-based id.
func CriterionByID(id int) (Criterion, bool) {
	for _, c := range Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}
