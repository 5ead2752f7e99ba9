// Package embedding turns catalog recipes into vectors and writes them to the
// vector index and the catalog's embedding table.
package embedding

import (
	"fmt"
	"strings"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/pkg/textnorm"
)

// BuildDocument 產生用於嵌入的標籤文件
//
//	[레시피명:…] [조리법:…] [요리종류:…] [재료:a, b] {name}는 {category}이며 {method} 만드는 요리이다.
func BuildDocument(r recipe.Recipe, ingredientNames []string) string {
	category := r.CategoryOr(recipe.UnknownPlaceholder)
	method := r.MethodOr(recipe.UnknownPlaceholder)

	tags := []string{
		fmt.Sprintf("[레시피명:%s]", textnorm.Normalize(r.Name)),
		fmt.Sprintf("[조리법:%s]", textnorm.Normalize(method)),
		fmt.Sprintf("[요리종류:%s]", textnorm.Normalize(category)),
		fmt.Sprintf("[재료:%s]", strings.Join(ingredientNames, ", ")),
	}
	summary := fmt.Sprintf("%s는 %s이며 %s 만드는 요리이다.", r.Name, category, method)

	return strings.Join(tags, " ") + " " + summary
}
