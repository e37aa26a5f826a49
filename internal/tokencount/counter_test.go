package tokencount

import "testing"

func TestUsageFraction(t *testing.T) {
	c := New()
	c.Update(800, 200)

	if got := c.UsageFraction(1000); got != 1.0 {
		t.Fatalf("usage fraction = %v, want 1.0", got)
	}
	if got := c.UsageFraction(10000); got != 0.1 {
		t.Fatalf("usage fraction = %v, want 0.1", got)
	}
	if got := c.UsageFraction(0); got != 0 {
		t.Fatalf("usage fraction with zero window = %v, want 0", got)
	}
}

func TestUpdateReplacesNotAccumulates(t *testing.T) {
	c := New()
	c.Update(100, 50)
	c.Update(10, 5)

	in, out := c.Tokens()
	if in != 10 || out != 5 {
		t.Fatalf("Tokens() = (%d, %d), want (10, 5): Update must replace, not accumulate", in, out)
	}
}

func TestReset(t *testing.T) {
	c := New()
	c.Update(100, 50)
	c.Reset()

	in, out := c.Tokens()
	if in != 0 || out != 0 {
		t.Fatalf("Tokens() after Reset = (%d, %d), want (0, 0)", in, out)
	}
}
