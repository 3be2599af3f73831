package application

import "context"

// UseCase is a single application operation taking command C and returning R.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
