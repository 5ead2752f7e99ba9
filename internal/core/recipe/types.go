package recipe

import (
	"strings"
	"time"
)

const (
	// MaxSteps 外部資料最多提供的調理步驟數
	MaxSteps = 20
	// UnknownPlaceholder 分類或調理法缺漏時使用的預設值
	UnknownPlaceholder = "미정"
)

// Recipe 食譜目錄中的一筆資料
type Recipe struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Category    *string   `db:"category" json:"category"`
	Method      *string   `db:"method" json:"method"`
	Description *string   `db:"description" json:"description"`
	Calories    *int      `db:"calories" json:"calories,omitempty"`
	Protein     *int      `db:"protein" json:"protein,omitempty"`
	Carbs       *int      `db:"carbs" json:"carbs,omitempty"`
	Fat         *int      `db:"fat" json:"fat,omitempty"`
	Sodium      *int      `db:"sodium" json:"sodium,omitempty"`
	RecipeHash  string    `db:"recipe_hash" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HashKey 由標題導出去重用的 recipe_hash；同名料理會合併為一筆
func HashKey(title string) string {
	return strings.TrimSpace(title)
}

// CategoryOr 返回分類，缺漏時使用預設值
func (r Recipe) CategoryOr(def string) string {
	if r.Category == nil || *r.Category == "" {
		return def
	}
	return *r.Category
}

// MethodOr 返回調理法，缺漏時使用預設值
func (r Recipe) MethodOr(def string) string {
	if r.Method == nil || *r.Method == "" {
		return def
	}
	return *r.Method
}

// DescriptionText 返回原始食材描述
func (r Recipe) DescriptionText() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// IngredientMaster 標準食材名稱
type IngredientMaster struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ingredient 食譜與食材的關聯（含份量）
type Ingredient struct {
	ID       int64    `db:"id" json:"id"`
	RecipeID int64    `db:"recipe_id" json:"recipe_id"`
	MasterID int64    `db:"master_id" json:"master_id"`
	Quantity *float64 `db:"quantity" json:"quantity,omitempty"`
	Unit     *string  `db:"unit" json:"unit,omitempty"`
}

// Instruction 調理步驟
type Instruction struct {
	ID          int64  `db:"id" json:"id"`
	RecipeID    int64  `db:"recipe_id" json:"recipe_id"`
	Step        int    `db:"step" json:"step"`
	Instruction string `db:"instruction" json:"instruction"`
}

// UserIngredient 使用者冰箱中的食材
type UserIngredient struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	IngredientID int64     `db:"ingredient_id" json:"ingredient_id"`
	Name         string    `db:"name" json:"name"`
	Quantity     float64   `db:"quantity" json:"quantity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RecipeEmbedding 每個食譜一筆的嵌入向量
type RecipeEmbedding struct {
	RecipeID  int64     `json:"recipe_id"`
	Vector    []float32 `json:"vector"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParsedIngredient 從食材文字解析出的項目
type ParsedIngredient struct {
	Name     string
	Quantity float64
	Unit     string
}

// RawRecord 外部資料來源對應後的標準紀錄
type RawRecord struct {
	Title          string
	Category       string
	Method         string
	IngredientText string
	Calories       *int
	Protein        *int
	Carbs          *int
	Fat            *int
	Sodium         *int
	Steps          [MaxSteps]string
}
