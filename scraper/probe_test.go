package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const fullForm = `<html><body><form method="post">
<input type="text" name="fref"><input type="text" name="frid">
<input type="text" name="sser"><input type="text" name="sref">
<input type="text" name="iid"><input type="text" name="iser">
<input type="submit" value="Search">
</form><div id="search_results"></div></body></html>`

func TestFormControls(t *testing.T) {
	names, hasSubmit := formControls([]byte(fullForm))
	for _, want := range []string{"fref", "frid", "sser", "sref", "iid", "iser"} {
		if _, ok := names[want]; !ok {
			t.Errorf("input %q not collected", want)
		}
	}
	if !hasSubmit {
		t.Error("submit control not detected")
	}
}

func TestFormControls_SubmitVariants(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"input submit", `<form><input type="submit" value="Go"></form>`, true},
		{"bare button", `<form><button>Go</button></form>`, true},
		{"explicit submit button", `<form><button type="submit">Go</button></form>`, true},
		{"plain button", `<form><button type="button">Go</button></form>`, false},
		{"reset button", `<form><button type="reset">Clear</button></form>`, false},
		{"no controls", `<form><input type="text" name="fref"></form>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := formControls([]byte(tt.html)); got != tt.want {
				t.Errorf("submit detected = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbe_FullContractPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fullForm))
	}))
	defer srv.Close()

	target := testTarget()
	target.URL = srv.URL

	status := NewProbe(target).Check(context.Background())
	if !status.Reachable {
		t.Fatalf("target unreachable: %s", status.Error)
	}
	if len(status.MissingFields) != 0 {
		t.Errorf("unexpected missing fields: %v", status.MissingFields)
	}
	if !status.SubmitPresent {
		t.Error("submit control reported missing from the full form")
	}
}

func TestProbe_DetectsContractDrift(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<form><input name="fref"><input name="frid"></form>`))
	}))
	defer srv.Close()

	target := testTarget()
	target.URL = srv.URL

	status := NewProbe(target).Check(context.Background())
	if !status.Reachable {
		t.Fatalf("target unreachable: %s", status.Error)
	}
	if len(status.MissingFields) != 4 {
		t.Errorf("missing fields = %v, want the four renamed inputs", status.MissingFields)
	}
	if status.SubmitPresent {
		t.Error("submit control reported present on a form without one")
	}
}

func TestProbe_ServerErrorIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	target := testTarget()
	target.URL = srv.URL

	status := NewProbe(target).Check(context.Background())
	if status.Reachable {
		t.Error("5xx target reported as reachable")
	}
	if status.Error == "" {
		t.Error("unreachable status carries no error description")
	}
}
