// Package registry maps policy names to constructors and holds the
// currently active policy. The active policy is swapped atomically, so a
// reload never affects streams already in flight: they keep the policy
// instance they started with.
package registry
