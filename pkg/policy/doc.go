// Package policy defines the authoring surface for proxy policies: the hook
// interface invoked by the stream engine, the per-stream state factory, the
// stream context through which hooks emit output, and the block vocabulary
// hooks operate on.
//
// A policy instance is shared read-only across every concurrent stream.
// All mutable per-stream state must live in the value returned by NewState,
// which the engine threads through every hook call for that stream. Storing
// mutable fields on the policy struct itself corrupts state across
// concurrent requests; nothing protects against that except this rule.
//
// Concrete policies embed Base and override only the hooks they need:
//
//	type WordCount struct {
//		policy.Base
//	}
//
//	type wordCountState struct{ words int }
//
//	func (WordCount) Name() string                      { return "word-count" }
//	func (WordCount) NewState() (policy.State, error)   { return &wordCountState{}, nil }
//
//	func (WordCount) OnContentDelta(ctx context.Context, sc policy.Context, st policy.State, delta string) error {
//		st.(*wordCountState).words += len(strings.Fields(delta))
//		return nil
//	}
package policy
