package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user label in context. Handlers set
// it from the X-Actor header so audit trails and journals can name who
// rang a sale or paid a payslip.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user label from context.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
