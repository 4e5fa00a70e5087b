package container_test

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/km-arc/go-appcontext/framework/container"
	"github.com/km-arc/go-appcontext/framework/errors"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Sender interface{ Send(msg string) string }

type smtpSender struct{ host string }

func (s *smtpSender) Send(msg string) string { return "smtp:" + msg }

type queueSender struct{}

func (q *queueSender) Send(msg string) string { return "queue:" + msg }

type closer struct {
	name   string
	closed *[]string
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

func build(t *testing.T, b *container.Builder, opts ...container.Option) *container.Registry {
	t.Helper()
	reg, err := b.Build(opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

// ── Get ───────────────────────────────────────────────────────────────────────

func TestRegistry_GetByName(t *testing.T) {
	b := container.NewBuilder()
	b.Instance("greeting", "hello")

	reg := build(t, b)
	got, err := container.Get[string](reg, "greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestRegistry_GetUnknownIsNotFound(t *testing.T) {
	reg := build(t, container.NewBuilder())

	_, err := reg.Get("missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestRegistry_Alias(t *testing.T) {
	b := container.NewBuilder()
	b.Instance("messageSource", "catalog").Alias("messageSource", "messages")

	reg := build(t, b)
	got, err := reg.Get("messages")
	if err != nil || got != "catalog" {
		t.Errorf("alias lookup: got %v, %v", got, err)
	}
	if !reg.Contains("messages") {
		t.Error("Contains should see aliases")
	}
}

func TestRegistry_WrongTypeAssertion(t *testing.T) {
	b := container.NewBuilder()
	b.Instance("port", 8080)

	_, err := container.Get[string](build(t, b), "port")
	if !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("want ErrTypeMismatch, got %v", err)
	}
}

// ── Singletons & prototypes ───────────────────────────────────────────────────

func TestRegistry_SingletonBuiltOnce(t *testing.T) {
	var calls atomic.Int32
	b := container.NewBuilder()
	container.Provide(b, "sender", func(container.Lookup) (*smtpSender, error) {
		calls.Add(1)
		return &smtpSender{host: "localhost"}, nil
	})
	reg := build(t, b)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = reg.Get("sender")
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("factory calls: got %d, want 1", calls.Load())
	}
	for i, r := range results {
		if r != results[0] {
			t.Errorf("result %d differs from result 0", i)
		}
	}
}

func TestRegistry_PrototypeBuiltEachTime(t *testing.T) {
	b := container.NewBuilder()
	container.ProvidePrototype(b, "sender", func(container.Lookup) (*smtpSender, error) {
		return &smtpSender{}, nil
	})
	reg := build(t, b)

	a, _ := reg.Get("sender")
	c, _ := reg.Get("sender")
	if a == c {
		t.Error("prototype lookups should return distinct instances")
	}
}

func TestRegistry_FactoryResolvesDependencies(t *testing.T) {
	b := container.NewBuilder()
	b.Instance("host", "mail.local")
	container.Provide(b, "sender", func(l container.Lookup) (*smtpSender, error) {
		host, err := container.Get[string](l, "host")
		if err != nil {
			return nil, err
		}
		return &smtpSender{host: host}, nil
	})

	s, err := container.Get[*smtpSender](build(t, b), "sender")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.host != "mail.local" {
		t.Errorf("host: got %q", s.host)
	}
}

func TestRegistry_CycleDetected(t *testing.T) {
	b := container.NewBuilder()
	container.Provide(b, "a", func(l container.Lookup) (*smtpSender, error) {
		_, err := l.Get("b")
		return &smtpSender{}, err
	})
	container.Provide(b, "b", func(l container.Lookup) (*queueSender, error) {
		_, err := l.Get("a")
		return &queueSender{}, err
	})

	_, err := build(t, b).Get("a")
	if !errors.Is(err, errors.ErrCurrentlyInCreation) {
		t.Errorf("want ErrCurrentlyInCreation, got %v", err)
	}
}

func TestRegistry_FactoryErrorNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	b := container.NewBuilder()
	container.Provide(b, "flaky", func(container.Lookup) (*queueSender, error) {
		if fail.Load() {
			return nil, fmt.Errorf("not yet")
		}
		return &queueSender{}, nil
	})
	reg := build(t, b)

	if _, err := reg.Get("flaky"); err == nil {
		t.Fatal("first Get should fail")
	}
	fail.Store(false)
	if _, err := reg.Get("flaky"); err != nil {
		t.Errorf("second Get should succeed, got %v", err)
	}
}

// within fails the test if fn has not returned after two seconds.
func within(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return")
	}
}

func TestRegistry_PostProcessorLooksUpOtherSingleton(t *testing.T) {
	b := container.NewBuilder()
	container.Provide(b, "dep", func(container.Lookup) (*queueSender, error) { return &queueSender{}, nil })
	container.Provide(b, "svc", func(container.Lookup) (*smtpSender, error) { return &smtpSender{}, nil })

	var reg *container.Registry
	var seen any
	pp := container.PostProcessorFunc(func(name string, v any) (any, error) {
		if name != "svc" {
			return v, nil
		}
		// top-level lookup, not the factory's view
		dep, err := reg.Get("dep")
		seen = dep
		return v, err
	})
	reg = build(t, b, container.WithPostProcessor(pp))

	within(t, func() {
		if _, err := reg.Get("svc"); err != nil {
			t.Errorf("Get svc: %v", err)
		}
	})
	dep, _ := reg.Get("dep")
	if seen == nil || seen != dep {
		t.Errorf("post-processor saw %v, want the dep singleton", seen)
	}
}

func TestRegistry_CrossChainCycleDetected(t *testing.T) {
	aStarted, bStarted := make(chan struct{}), make(chan struct{})
	var aOnce, bOnce sync.Once
	b := container.NewBuilder()
	container.Provide(b, "a", func(l container.Lookup) (*smtpSender, error) {
		aOnce.Do(func() { close(aStarted) })
		<-bStarted
		_, err := l.Get("b")
		return &smtpSender{}, err
	})
	container.Provide(b, "b", func(l container.Lookup) (*queueSender, error) {
		bOnce.Do(func() { close(bStarted) })
		<-aStarted
		_, err := l.Get("a")
		return &queueSender{}, err
	})
	reg := build(t, b)

	errs := make([]error, 2)
	within(t, func() {
		var wg sync.WaitGroup
		for i, name := range []string{"a", "b"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = reg.Get(name)
			}()
		}
		wg.Wait()
	})
	for i, err := range errs {
		if !errors.Is(err, errors.ErrCurrentlyInCreation) {
			t.Errorf("lookup %d: want ErrCurrentlyInCreation, got %v", i, err)
		}
	}
}

func TestRegistry_PanickingFactoryReleasesEntry(t *testing.T) {
	var panicked atomic.Bool
	b := container.NewBuilder()
	container.Provide(b, "fragile", func(container.Lookup) (*queueSender, error) {
		if panicked.CompareAndSwap(false, true) {
			panic("first build")
		}
		return &queueSender{}, nil
	})
	reg := build(t, b)

	func() {
		defer func() { _ = recover() }()
		_, _ = reg.Get("fragile")
	}()
	within(t, func() {
		if _, err := reg.Get("fragile"); err != nil {
			t.Errorf("Get after panic: %v", err)
		}
	})
}

func TestRegistry_ConcurrentFirstGetBuildsOnce(t *testing.T) {
	var builds atomic.Int32
	b := container.NewBuilder()
	container.Provide(b, "slow", func(container.Lookup) (*queueSender, error) {
		builds.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &queueSender{}, nil
	})
	reg := build(t, b)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Get("slow"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := builds.Load(); n != 1 {
		t.Errorf("factory ran %d times, want 1", n)
	}
}

// ── Type lookup ───────────────────────────────────────────────────────────────

func TestRegistry_GetByTypeSingleCandidate(t *testing.T) {
	b := container.NewBuilder()
	container.ProvideValue[Sender](b, "sender", &smtpSender{})
	b.Instance("other", 42)

	s, err := container.GetByType[Sender](build(t, b))
	if err != nil {
		t.Fatalf("GetByType: %v", err)
	}
	if s.Send("x") != "smtp:x" {
		t.Errorf("wrong sender: %s", s.Send("x"))
	}
}

func TestRegistry_GetByTypeAmbiguous(t *testing.T) {
	b := container.NewBuilder()
	b.Instance("smtp", &smtpSender{}).Instance("queue", &queueSender{})

	_, err := container.GetByType[Sender](build(t, b))
	if !errors.Is(err, errors.ErrAmbiguous) {
		t.Fatalf("want ErrAmbiguous, got %v", err)
	}
	var amb *container.AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("want *AmbiguousError, got %T", err)
	}
	if want := []string{"queue", "smtp"}; !reflect.DeepEqual(amb.Candidates, want) {
		t.Errorf("candidates: got %v want %v", amb.Candidates, want)
	}
}

func TestRegistry_GetByTypePrimaryWins(t *testing.T) {
	b := container.NewBuilder()
	b.Instance("smtp", &smtpSender{}).Instance("queue", &queueSender{}).Primary("queue")

	s, err := container.GetByType[Sender](build(t, b))
	if err != nil {
		t.Fatalf("GetByType: %v", err)
	}
	if s.Send("x") != "queue:x" {
		t.Errorf("primary not chosen: %s", s.Send("x"))
	}
}

func TestRegistry_GetAllLocalOnly(t *testing.T) {
	parentB := container.NewBuilder()
	parentB.Instance("parentSender", &smtpSender{})
	parent := build(t, parentB)

	b := container.NewBuilder()
	b.Instance("childSender", &queueSender{})
	child := build(t, b, container.WithParent(parent))

	all, err := container.GetAll[Sender](child)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("GetAll should be local only, got %v", all)
	}
	if _, ok := all["childSender"]; !ok {
		t.Errorf("missing childSender: %v", all)
	}
	if child.Contains("parentSender") {
		t.Error("Contains must not look at the parent")
	}
}

func TestOptional(t *testing.T) {
	reg := build(t, container.NewBuilder())

	_, ok, err := container.Optional[Sender](reg)
	if err != nil || ok {
		t.Errorf("Optional on empty registry: ok=%v err=%v", ok, err)
	}
}

// ── Parent delegation ─────────────────────────────────────────────────────────

func TestRegistry_ParentDelegationAndShadowing(t *testing.T) {
	pb := container.NewBuilder()
	pb.Instance("name", "parent")
	parent := build(t, pb)

	child := build(t, container.NewBuilder(), container.WithParent(parent))
	if got, _ := child.Get("name"); got != "parent" {
		t.Errorf("child should inherit: got %v", got)
	}

	sb := container.NewBuilder()
	sb.Instance("name", "child")
	shadow := build(t, sb, container.WithParent(parent))
	if got, _ := shadow.Get("name"); got != "child" {
		t.Errorf("child registration should win: got %v", got)
	}
	if got, _ := parent.Get("name"); got != "parent" {
		t.Errorf("parent must be unaffected: got %v", got)
	}
}

func TestRegistry_LocalAmbiguityNotResolvedByParent(t *testing.T) {
	pb := container.NewBuilder()
	pb.Instance("only", &smtpSender{})
	parent := build(t, pb)

	b := container.NewBuilder()
	b.Instance("a", &smtpSender{}).Instance("b", &queueSender{})
	child := build(t, b, container.WithParent(parent))

	if _, err := container.GetByType[Sender](child); !errors.Is(err, errors.ErrAmbiguous) {
		t.Errorf("want ErrAmbiguous, got %v", err)
	}
}

// ── Post-processing ───────────────────────────────────────────────────────────

func TestRegistry_PostProcessorsRunInOrder(t *testing.T) {
	var seen []string
	pp := func(tag string) container.PostProcessor {
		return container.PostProcessorFunc(func(name string, v any) (any, error) {
			seen = append(seen, tag+":"+name)
			return v, nil
		})
	}
	b := container.NewBuilder()
	container.Provide(b, "sender", func(container.Lookup) (*smtpSender, error) { return &smtpSender{}, nil })
	b.Instance("plain", "value")
	reg := build(t, b, container.WithPostProcessor(pp("first")), container.WithPostProcessor(pp("second")))

	_, _ = reg.Get("sender")
	_, _ = reg.Get("plain")

	want := []string{"first:sender", "second:sender"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("post-processing: got %v want %v", seen, want)
	}
}

// ── Destroy ───────────────────────────────────────────────────────────────────

func TestRegistry_DestroyReverseOrder(t *testing.T) {
	var closed []string
	b := container.NewBuilder()
	container.Provide(b, "first", func(container.Lookup) (*closer, error) {
		return &closer{name: "first", closed: &closed}, nil
	})
	container.Provide(b, "second", func(l container.Lookup) (*closer, error) {
		if _, err := l.Get("first"); err != nil {
			return nil, err
		}
		return &closer{name: "second", closed: &closed}, nil
	})
	reg := build(t, b)
	_, _ = reg.Get("second")

	if err := reg.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if want := []string{"second", "first"}; !reflect.DeepEqual(closed, want) {
		t.Errorf("close order: got %v want %v", closed, want)
	}
	if _, err := reg.Get("first"); !errors.Is(err, errors.ErrIllegalState) {
		t.Errorf("Get after Destroy: want ErrIllegalState, got %v", err)
	}
	if err := reg.Destroy(); err != nil {
		t.Errorf("second Destroy should be a no-op, got %v", err)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *container.Builder)
	}{
		{"duplicate name", func(b *container.Builder) { b.Instance("x", 1).Instance("x", 2) }},
		{"empty name", func(b *container.Builder) { b.Instance("", 1) }},
		{"no instance or factory", func(b *container.Builder) { b.Add(container.Definition{Name: "x"}) }},
		{"factory without type", func(b *container.Builder) {
			b.Add(container.Definition{Name: "x", Factory: func(container.Lookup) (any, error) { return 1, nil }})
		}},
		{"unknown scope", func(b *container.Builder) {
			b.Add(container.Definition{Name: "x", Instance: 1, Scope: "session"})
		}},
		{"alias to unknown", func(b *container.Builder) { b.Alias("missing", "m") }},
		{"self alias", func(b *container.Builder) { b.Instance("x", 1).Alias("x", "x") }},
		{"primary unknown", func(b *container.Builder) { b.Primary("ghost") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := container.NewBuilder()
			tt.setup(b)
			if _, err := b.Build(); !errors.Is(err, errors.ErrInvalidDefinition) {
				t.Errorf("want ErrInvalidDefinition, got %v", err)
			}
		})
	}
}

func TestRegistry_FactoryTypeMismatch(t *testing.T) {
	b := container.NewBuilder()
	b.Singleton("x", reflect.TypeFor[*smtpSender](), func(container.Lookup) (any, error) {
		return &queueSender{}, nil
	})

	if _, err := build(t, b).Get("x"); !errors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("want ErrTypeMismatch, got %v", err)
	}
}

func TestRegistry_Observer(t *testing.T) {
	var ops []string
	reg := build(t, container.NewBuilder(), container.WithObserver(func(op string, err error) {
		ops = append(ops, fmt.Sprintf("%s:%v", op, errors.Is(err, errors.ErrNotFound)))
	}))

	_, _ = reg.Get("x")
	_, _ = reg.GetByType(reflect.TypeFor[Sender]())

	if want := []string{"name:true", "type:true"}; !reflect.DeepEqual(ops, want) {
		t.Errorf("observer: got %v want %v", ops, want)
	}
}
