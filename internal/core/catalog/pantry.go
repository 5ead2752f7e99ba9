package catalog

import (
	"context"
	"fmt"

	"recipe-recommender/internal/core/recipe"
)

// EnsureIngredientMaster 取得或建立標準食材（交易外）
func (s *Store) EnsureIngredientMaster(ctx context.Context, name string) (InsertResult, error) {
	return ensureIngredientMaster(ctx, s.db, name)
}

// UpsertUserIngredient 寫入使用者冰箱食材，返回是否為新增
func (s *Store) UpsertUserIngredient(ctx context.Context, userID, ingredientID int64, quantity float64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO user_ingredients (user_id, ingredient_id, quantity) VALUES (?, ?, ?)
		ON CONFLICT (user_id, ingredient_id) DO NOTHING`),
		userID, ingredientID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user ingredient: %w", err)
	}
	if affected(res) {
		return true, nil
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE user_ingredients SET quantity = ? WHERE user_id = ? AND ingredient_id = ?`),
		quantity, userID, ingredientID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update user ingredient: %w", err)
	}
	return false, nil
}

// Pantry 返回使用者冰箱食材
func (s *Store) Pantry(ctx context.Context, userID int64) ([]recipe.UserIngredient, error) {
	var items []recipe.UserIngredient
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(`
		SELECT u.user_id, u.ingredient_id, m.name, u.quantity, u.created_at
		FROM user_ingredients u
		JOIN ingredient_master m ON m.id = u.ingredient_id
		WHERE u.user_id = ?
		ORDER BY u.ingredient_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pantry: %w", err)
	}
	return items, nil
}

// PantryIngredientIDs 返回使用者冰箱的食材 id
func (s *Store) PantryIngredientIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT ingredient_id FROM user_ingredients WHERE user_id = ? ORDER BY ingredient_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pantry ids: %w", err)
	}
	return ids, nil
}

// PantryNames 返回使用者冰箱的食材名稱
func (s *Store) PantryNames(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, s.db.Rebind(`
		SELECT m.name FROM user_ingredients u
		JOIN ingredient_master m ON m.id = u.ingredient_id
		WHERE u.user_id = ?
		ORDER BY u.ingredient_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pantry names: %w", err)
	}
	return names, nil
}
