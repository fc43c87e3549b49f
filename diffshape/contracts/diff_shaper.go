package contracts

import "github.com/meysamhadeli/gitshape/diffshape/models"

type IDiffShaper interface {
	Shape(diff string, opts models.Options) (*models.Result, error)
	Compare(diff string, opts models.Options) ([]models.Comparison, error)
	Parse(diff string) ([]*models.FileChange, error)
}
