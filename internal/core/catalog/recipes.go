package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recipe-recommender/internal/core/recipe"

	"github.com/jmoiron/sqlx"
)

// InsertResult insert-or-get 的結果
type InsertResult struct {
	ID       int64
	Inserted bool
}

// Tx 單一交易內的寫入操作
type Tx struct {
	tx *sqlx.Tx
}

const recipeColumns = `id, name, category, method, description, calories, protein, carbs, fat, sodium, recipe_hash, created_at, updated_at`

// InsertRecipe 以 recipe_hash 去重新增食譜，已存在時返回既有 id
func (t *Tx) InsertRecipe(ctx context.Context, r *recipe.Recipe) (InsertResult, error) {
	var id int64
	err := t.tx.QueryRowxContext(ctx, t.tx.Rebind(`
		INSERT INTO recipes (name, category, method, description, calories, protein, carbs, fat, sodium, recipe_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`),
		r.Name, r.Category, r.Method, r.Description,
		r.Calories, r.Protein, r.Carbs, r.Fat, r.Sodium, r.RecipeHash,
	).Scan(&id)
	if err == nil {
		r.ID = id
		return InsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return InsertResult{}, fmt.Errorf("failed to insert recipe: %w", err)
	}

	// 衝突：同一個 hash 已存在
	err = sqlx.GetContext(ctx, t.tx, &id, t.tx.Rebind(`SELECT id FROM recipes WHERE recipe_hash = ?`), r.RecipeHash)
	if errors.Is(err, sql.ErrNoRows) {
		// 名稱衝突但 hash 不同
		return InsertResult{}, fmt.Errorf("recipe name %q already taken: %w", r.Name, ErrNameConflict)
	}
	if err != nil {
		return InsertResult{}, fmt.Errorf("failed to look up recipe: %w", err)
	}
	r.ID = id
	return InsertResult{ID: id, Inserted: false}, nil
}

// ErrNameConflict 食譜名稱已被其他 hash 使用
var ErrNameConflict = errors.New("catalog: recipe name conflict")

// EnsureIngredientMaster 取得或建立標準食材
func (t *Tx) EnsureIngredientMaster(ctx context.Context, name string) (InsertResult, error) {
	return ensureIngredientMaster(ctx, t.tx, name)
}

func ensureIngredientMaster(ctx context.Context, q sqlx.ExtContext, name string) (InsertResult, error) {
	var id int64
	err := q.QueryRowxContext(ctx, q.Rebind(`
		INSERT INTO ingredient_master (name) VALUES (?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`), name).Scan(&id)
	if err == nil {
		return InsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return InsertResult{}, fmt.Errorf("failed to insert ingredient master: %w", err)
	}

	if err := sqlx.GetContext(ctx, q, &id, q.Rebind(`SELECT id FROM ingredient_master WHERE name = ?`), name); err != nil {
		return InsertResult{}, fmt.Errorf("failed to look up ingredient master: %w", err)
	}
	return InsertResult{ID: id, Inserted: false}, nil
}

// InsertRecipeIngredient 新增食譜食材（含份量），重複時略過
func (t *Tx) InsertRecipeIngredient(ctx context.Context, recipeID, masterID int64, quantity *float64, unit *string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO ingredients (recipe_id, master_id, quantity, unit) VALUES (?, ?, ?, ?)
		ON CONFLICT (recipe_id, master_id) DO NOTHING`),
		recipeID, masterID, quantity, unit,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert recipe ingredient: %w", err)
	}
	return affected(res), nil
}

// InsertMapping 新增食材與食譜的對應，重複時略過
func (t *Tx) InsertMapping(ctx context.Context, ingredientID, recipeID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO ingredient_recipe_mapping (ingredient_id, recipe_id) VALUES (?, ?)
		ON CONFLICT (ingredient_id, recipe_id) DO NOTHING`),
		ingredientID, recipeID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert ingredient mapping: %w", err)
	}
	return affected(res), nil
}

// InsertInstruction 新增調理步驟，(recipe, step) 重複時略過
func (t *Tx) InsertInstruction(ctx context.Context, recipeID int64, step int, text string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO instructions (recipe_id, step, instruction) VALUES (?, ?, ?)
		ON CONFLICT (recipe_id, step) DO NOTHING`),
		recipeID, step, text,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert instruction: %w", err)
	}
	return affected(res), nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// RecipeByTitle 以 recipe.HashKey(title) 查詢食譜
func (s *Store) RecipeByTitle(ctx context.Context, title string) (*recipe.Recipe, error) {
	var r recipe.Recipe
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+recipeColumns+` FROM recipes WHERE recipe_hash = ?`), recipe.HashKey(title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return &r, nil
}

// RecipesByIDs 批次載入食譜，不保證順序，查無的 id 直接略過
func (s *Store) RecipesByIDs(ctx context.Context, ids []int64) ([]recipe.Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+recipeColumns+` FROM recipes WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build recipe query: %w", err)
	}

	var recipes []recipe.Recipe
	if err := s.db.SelectContext(ctx, &recipes, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	return recipes, nil
}

// PendingRecipes 返回尚未嵌入的食譜
func (s *Store) PendingRecipes(ctx context.Context, limit int) ([]recipe.Recipe, error) {
	var recipes []recipe.Recipe
	err := s.db.SelectContext(ctx, &recipes, s.db.Rebind(`
		SELECT r.id, r.name, r.category, r.method, r.description, r.calories, r.protein, r.carbs, r.fat, r.sodium,
		       r.recipe_hash, r.created_at, r.updated_at
		FROM recipes r
		LEFT JOIN recipe_embeddings e ON e.recipe_id = r.id
		WHERE e.recipe_id IS NULL
		ORDER BY r.id
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending recipes: %w", err)
	}
	return recipes, nil
}

// IngredientNames 返回每個食譜的食材名稱（依解析順序）
func (s *Store) IngredientNames(ctx context.Context, recipeIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT i.recipe_id, m.name
		FROM ingredients i
		JOIN ingredient_master m ON m.id = i.master_id
		WHERE i.recipe_id IN (?)
		ORDER BY i.recipe_id, i.id`, recipeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build ingredient query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredient names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recipeID int64
			name     string
		)
		if err := rows.Scan(&recipeID, &name); err != nil {
			return nil, err
		}
		result[recipeID] = append(result[recipeID], name)
	}
	return result, rows.Err()
}

// RecipeIngredientIDs 依對應表返回每個食譜的食材 id 集合
func (s *Store) RecipeIngredientIDs(ctx context.Context, recipeIDs []int64) (map[int64][]int64, error) {
	result := make(map[int64][]int64, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT recipe_id, ingredient_id FROM ingredient_recipe_mapping WHERE recipe_id IN (?)`, recipeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapping query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredient mapping: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID, ingredientID int64
		if err := rows.Scan(&recipeID, &ingredientID); err != nil {
			return nil, err
		}
		result[recipeID] = append(result[recipeID], ingredientID)
	}
	return result, rows.Err()
}

// Instructions 返回食譜的調理步驟
func (s *Store) Instructions(ctx context.Context, recipeID int64) ([]recipe.Instruction, error) {
	var steps []recipe.Instruction
	err := s.db.SelectContext(ctx, &steps, s.db.Rebind(`
		SELECT id, recipe_id, step, instruction FROM instructions WHERE recipe_id = ? ORDER BY step`), recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instructions: %w", err)
	}
	return steps, nil
}

// CountRecipes 返回食譜總數
func (s *Store) CountRecipes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM recipes`); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return n, nil
}
