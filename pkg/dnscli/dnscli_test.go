package dnscli

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func scriptedClient(stdout, stderr string, fail bool, opts ...Option) (*Client, *[][]string) {
	var calls [][]string
	c := New(opts...)
	c.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if fail {
			return nil, []byte(stderr), errors.New("exit status 1")
		}
		return []byte(stdout), nil, nil
	}
	return c, &calls
}

func TestAddRecord(t *testing.T) {
	c, calls := scriptedClient("record added", "", false)

	res := c.AddRecord(context.Background(), "example.com", "@", "A", "76.76.21.21")
	if !res.Success || res.Output != "record added" {
		t.Errorf("result = %+v", res)
	}

	want := []string{"vercel", "dns", "add", "example.com", "@", "A", "76.76.21.21"}
	if !reflect.DeepEqual((*calls)[0], want) {
		t.Errorf("invocation = %v, want %v", (*calls)[0], want)
	}
}

func TestListRecords(t *testing.T) {
	c, calls := scriptedClient("a b c", "", false)

	c.ListRecords(context.Background(), "example.com")

	want := []string{"vercel", "dns", "ls", "example.com"}
	if !reflect.DeepEqual((*calls)[0], want) {
		t.Errorf("invocation = %v, want %v", (*calls)[0], want)
	}
}

func TestInspectDomain(t *testing.T) {
	c, calls := scriptedClient("verified", "", false)

	c.InspectDomain(context.Background(), "example.com")

	want := []string{"vercel", "domains", "inspect", "example.com"}
	if !reflect.DeepEqual((*calls)[0], want) {
		t.Errorf("invocation = %v, want %v", (*calls)[0], want)
	}
}

func TestScopeFlagPrecedesCommand(t *testing.T) {
	c, calls := scriptedClient("", "", false, WithScope("pulseops"))

	c.ListRecords(context.Background(), "example.com")

	want := []string{"vercel", "--scope", "pulseops", "dns", "ls", "example.com"}
	if !reflect.DeepEqual((*calls)[0], want) {
		t.Errorf("invocation = %v, want %v", (*calls)[0], want)
	}
}

func TestFailureCapturesStderr(t *testing.T) {
	c, _ := scriptedClient("", "Error: Not authorized", true)

	res := c.AddRecord(context.Background(), "example.com", "@", "A", "76.76.21.21")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "Error: Not authorized" {
		t.Errorf("error = %q", res.Error)
	}
}
