package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recipe-recommender/internal/core/recipe"
)

// UpsertEmbedding 寫入食譜向量，已存在時覆蓋
func (s *Store) UpsertEmbedding(ctx context.Context, recipeID int64, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO recipe_embeddings (recipe_id, embedding, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (recipe_id) DO UPDATE SET embedding = excluded.embedding, updated_at = CURRENT_TIMESTAMP`),
		recipeID, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding for recipe %d: %w", recipeID, err)
	}
	return nil
}

// Embedding 讀取食譜向量
func (s *Store) Embedding(ctx context.Context, recipeID int64) (*recipe.RecipeEmbedding, error) {
	var row struct {
		RecipeID  int64     `db:"recipe_id"`
		Embedding string    `db:"embedding"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT recipe_id, embedding, updated_at FROM recipe_embeddings WHERE recipe_id = ?`), recipeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	emb := &recipe.RecipeEmbedding{RecipeID: row.RecipeID, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal([]byte(row.Embedding), &emb.Vector); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return emb, nil
}

// CountEmbeddings 返回已嵌入的食譜數
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM recipe_embeddings`); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}
