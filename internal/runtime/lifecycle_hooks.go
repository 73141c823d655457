package runtime

import (
	"context"
	"errors"
)

// LifecycleHooks are the extension points a concrete processor implements.
// Every field is optional.
//
// OnOpen and OnClose are paired once per run. OnAbort only runs on the abort
// path and always before OnClose. OnSuspend and OnResume run on the goroutine
// calling Suspend or Resume.
type LifecycleHooks struct {
	// OnOpen runs before any worker starts. A returned error cancels Start and
	// leaves the processor idle.
	OnOpen    func(ctx context.Context, p *Processor) error
	OnClose   func(p *Processor)
	OnAbort   func(p *Processor)
	OnSuspend func(p *Processor)
	OnResume  func(p *Processor)
}

// Merge returns hooks running h first and other second.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnOpen:    chainOpen(h.OnOpen, other.OnOpen),
		OnClose:   chainProcessor(h.OnClose, other.OnClose),
		OnAbort:   chainProcessor(h.OnAbort, other.OnAbort),
		OnSuspend: chainProcessor(h.OnSuspend, other.OnSuspend),
		OnResume:  chainProcessor(h.OnResume, other.OnResume),
	}
}

func chainOpen(first, second func(context.Context, *Processor) error) func(context.Context, *Processor) error {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ctx context.Context, p *Processor) error {
		if err := first(ctx, p); err != nil {
			return err
		}
		return second(ctx, p)
	}
}

func chainProcessor(first, second func(*Processor)) func(*Processor) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(p *Processor) {
		first(p)
		second(p)
	}
}

// GeneratorHooks drive a generator. OnStartup runs once on the driving
// goroutine before the first tick; a returned error aborts the generator.
// OnTick is invoked repeatedly while running and not suspended; a generator
// with nothing left to produce calls Stop from inside OnTick. OnShutdown runs on
// the driving goroutine when it leaves the loop because of Stop.
type GeneratorHooks struct {
	OnStartup  func(ctx context.Context, g *Generator) error
	OnTick     func(ctx context.Context, g *Generator) error
	OnShutdown func(ctx context.Context, g *Generator)
}

// Merge returns hooks running h first and other second. Tick errors from both
// sides are joined.
func (h GeneratorHooks) Merge(other GeneratorHooks) GeneratorHooks {
	merged := GeneratorHooks{
		OnStartup:  h.OnStartup,
		OnTick:     h.OnTick,
		OnShutdown: h.OnShutdown,
	}
	if other.OnStartup != nil {
		if merged.OnStartup == nil {
			merged.OnStartup = other.OnStartup
		} else {
			first := merged.OnStartup
			merged.OnStartup = func(ctx context.Context, g *Generator) error {
				if err := first(ctx, g); err != nil {
					return err
				}
				return other.OnStartup(ctx, g)
			}
		}
	}
	if other.OnTick != nil {
		if merged.OnTick == nil {
			merged.OnTick = other.OnTick
		} else {
			first := merged.OnTick
			merged.OnTick = func(ctx context.Context, g *Generator) error {
				return errors.Join(first(ctx, g), other.OnTick(ctx, g))
			}
		}
	}
	if other.OnShutdown != nil {
		if merged.OnShutdown == nil {
			merged.OnShutdown = other.OnShutdown
		} else {
			first := merged.OnShutdown
			merged.OnShutdown = func(ctx context.Context, g *Generator) {
				first(ctx, g)
				other.OnShutdown(ctx, g)
			}
		}
	}
	return merged
}
