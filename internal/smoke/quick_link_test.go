package smoke

import (
	"context"
	"testing"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

func TestQuickLinkCheck_Passes(t *testing.T) {
	page := newFakePage(guideSite())
	res := NewQuickLinkCheck(testBase).Run(context.Background(), page)
	if !res.Passed() {
		t.Fatalf("Run() status = %s (%s); want passed", res.Status, res.Error)
	}
	if res.Steps[2].Detail != testBase+"/setup-guide.html#my-mac-config" {
		t.Fatalf("wait-url detail = %q; want destination url", res.Steps[2].Detail)
	}
}

func TestQuickLinkCheck_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*fakeSite)
		wantStep string
		wantCode string
	}{
		{
			name:     "card missing",
			mutate:   func(s *fakeSite) { s.docs[testBase+"/index.html"].cardLinks = nil },
			wantStep: StepClick,
			wantCode: cdpcontrol.CodeElementNotFound,
		},
		{
			name: "card points elsewhere",
			mutate: func(s *fakeSite) {
				s.docs[testBase+"/index.html"].cardLinks[`a.link-card[href="setup-guide.html#my-mac-config"]`] = testBase + "/setup-guide.html#other"
			},
			wantStep: StepWaitURL,
			wantCode: cdpcontrol.CodeTimeout,
		},
		{
			name: "text missing",
			mutate: func(s *fakeSite) {
				guideDoc(s).elements["markdown-content"] = fakeElement{visible: true, text: "nothing here"}
			},
			wantStep: StepTextVisible,
			wantCode: cdpcontrol.CodeElementNotFound,
		},
		{
			name:     "text hidden",
			mutate:   func(s *fakeSite) { guideDoc(s).hiddenText = true },
			wantStep: StepTextVisible,
			wantCode: cdpcontrol.CodeElementNotVisible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := guideSite()
			tt.mutate(site)
			res := NewQuickLinkCheck(testBase).Run(context.Background(), newFakePage(site))
			if res.FailedStep != tt.wantStep {
				t.Fatalf("FailedStep = %q; want %q (error %s)", res.FailedStep, tt.wantStep, res.Error)
			}
			if res.ErrorCode != tt.wantCode {
				t.Fatalf("ErrorCode = %q; want %q", res.ErrorCode, tt.wantCode)
			}
		})
	}
}
