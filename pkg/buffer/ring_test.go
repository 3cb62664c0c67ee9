package buffer

import (
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	r := New[string](100)

	if r.Cap() != 100 {
		t.Errorf("Expected capacity 100, got %d", r.Cap())
	}

	if r.Len() != 0 {
		t.Errorf("Expected size 0, got %d", r.Len())
	}
}

func TestNew_DefaultCapacity(t *testing.T) {
	r := New[int](0)

	if r.Cap() != DefaultCapacity {
		t.Errorf("Expected default capacity %d, got %d", DefaultCapacity, r.Cap())
	}
}

func TestPush_Single(t *testing.T) {
	r := New[string](10)
	r.Push("hello")

	if r.Len() != 1 {
		t.Errorf("Expected size 1, got %d", r.Len())
	}

	all := r.All()
	if len(all) != 1 || all[0] != "hello" {
		t.Fatalf("Expected [hello], got %v", all)
	}
}

func TestPush_WrapAround(t *testing.T) {
	r := New[string](3)

	r.Push("m1")
	r.Push("m2")
	r.Push("m3")
	r.Push("m4") // overwrites m1

	if r.Len() != 3 {
		t.Errorf("Expected size 3, got %d", r.Len())
	}

	all := r.All()
	expected := []string{"m2", "m3", "m4"}
	for i, exp := range expected {
		if all[i] != exp {
			t.Errorf("Entry %d: expected %q, got %q", i, exp, all[i])
		}
	}
}

func TestLastN(t *testing.T) {
	r := New[int](10)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	got := r.LastN(3)
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	for i, exp := range []int{3, 4, 5} {
		if got[i] != exp {
			t.Errorf("Entry %d: expected %d, got %d", i, exp, got[i])
		}
	}

	if got := r.LastN(100); len(got) != 5 {
		t.Errorf("Expected 5 entries, got %d", len(got))
	}
	if got := r.LastN(0); len(got) != 0 {
		t.Errorf("Expected no entries, got %d", len(got))
	}
}

func TestLastN_ReturnsCopy(t *testing.T) {
	r := New[int](4)
	r.Push(1)

	got := r.LastN(1)
	got[0] = 99

	if last, _ := r.Last(); last != 1 {
		t.Errorf("Expected ring to be unaffected, got %d", last)
	}
}

func TestUpdateLast(t *testing.T) {
	type msg struct{ text string }
	r := New[msg](2)

	if r.UpdateLast(func(m *msg) { m.text = "x" }) {
		t.Fatal("Expected UpdateLast on empty ring to report false")
	}

	r.Push(msg{text: "a"})
	r.Push(msg{text: "b"})
	r.Push(msg{text: "c"})

	if !r.UpdateLast(func(m *msg) { m.text += "d" }) {
		t.Fatal("Expected UpdateLast to report true")
	}

	last, ok := r.Last()
	if !ok || last.text != "cd" {
		t.Errorf("Expected last entry 'cd', got %q", last.text)
	}
	if first := r.All()[0]; first.text != "b" {
		t.Errorf("Expected oldest entry 'b', got %q", first.text)
	}
}

func TestClear(t *testing.T) {
	r := New[string](10)
	r.Push("a")
	r.Push("b")

	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", r.Len())
	}
	if _, ok := r.Last(); ok {
		t.Error("Expected no last entry after clear")
	}
	if len(r.All()) != 0 {
		t.Errorf("Expected 0 entries after clear, got %d", len(r.All()))
	}
}

func TestConcurrentPush(t *testing.T) {
	r := New[int](1000)

	var wg sync.WaitGroup
	writers := 10
	perWriter := 100

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				r.Push(id)
			}
		}(i)
	}

	wg.Wait()

	if r.Len() != 1000 {
		t.Errorf("Expected size 1000, got %d", r.Len())
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[int](100)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.Push(i)
			r.UpdateLast(func(v *int) { *v++ })
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = r.LastN(10)
			_ = r.Len()
		}
	}()

	wg.Wait()

	if r.Len() != 100 {
		t.Errorf("Expected size 100, got %d", r.Len())
	}
}

func BenchmarkPush(b *testing.B) {
	r := New[string](10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push("benchmark entry")
	}
}

func BenchmarkLastN(b *testing.B) {
	r := New[string](10000)
	for i := 0; i < 10000; i++ {
		r.Push("entry")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.LastN(1000)
	}
}
