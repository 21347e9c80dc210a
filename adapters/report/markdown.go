package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"expstat/app"
	"expstat/domain/experiment"
)

// Renderer turns run reports into markdown artifacts. Rendering lives
// entirely outside the engine; it consumes the structured values and never
// feeds anything back.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer that writes artifacts under dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// RenderMarkdown renders the full analysis document.
func (r *Renderer) RenderMarkdown(report *app.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Experiment Analysis %s\n\n", report.RunID)
	fmt.Fprintf(&b, "Recommendation: **%s**\n\n", report.Decision.Recommendation)
	fmt.Fprintf(&b, "Fingerprint: `%s`\n\n", report.Fingerprint)

	b.WriteString("## Randomization check\n\n")
	fmt.Fprintf(&b, "- chi-square statistic: %.4f (%d df)\n", report.SRM.ChiSquareStatistic, report.SRM.DegreesOfFreedom)
	fmt.Fprintf(&b, "- p-value: %.4g (threshold %.3g)\n", report.SRM.PValue, report.SRM.Threshold)
	fmt.Fprintf(&b, "- suspect: %t\n\n", report.SRM.IsSuspect)

	b.WriteString("## Primary metric\n\n")
	r.writeResult(&b, report.Primary)

	if len(report.Guardrails) > 0 {
		b.WriteString("## Guardrail metrics\n\n")
		names := make([]string, 0, len(report.Guardrails))
		for name := range report.Guardrails {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "### %s\n\n", name)
			r.writeResult(&b, report.Guardrails[name])
		}
	}

	b.WriteString("## Decision\n\n")
	for _, reason := range report.Decision.Rationale {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	if len(report.Decision.GuardrailViolations) > 0 {
		violations := make([]string, 0, len(report.Decision.GuardrailViolations))
		for name := range report.Decision.GuardrailViolations {
			violations = append(violations, name)
		}
		sort.Strings(violations)
		fmt.Fprintf(&b, "\nGuardrail violations: %s\n", strings.Join(violations, ", "))
	}

	return b.String()
}

func (r *Renderer) writeResult(b *strings.Builder, result experiment.AnalysisResult) {
	fmt.Fprintf(b, "- control: %.6g (%d units), treatment: %.6g (%d units)\n",
		result.ControlValue, result.ControlUnits, result.TreatmentValue, result.TreatmentUnits)
	fmt.Fprintf(b, "- absolute uplift: %+.6g\n", result.UpliftAbsolute)
	if result.RelativeUndefined {
		b.WriteString("- relative uplift: undefined (control value is zero)\n")
	} else {
		fmt.Fprintf(b, "- relative uplift: %+.2f%%\n", result.UpliftRelative*100)
	}
	fmt.Fprintf(b, "- %.0f%% CI: [%.6g, %.6g]\n", (1-result.Alpha)*100, result.ConfidenceInt.Low, result.ConfidenceInt.High)
	fmt.Fprintf(b, "- p-value: %.4g, significant: %t\n\n", result.PValue, result.IsSignificant)
}

// RenderHTML converts the markdown document to HTML for the API surface.
func (r *Renderer) RenderHTML(report *app.RunReport) []byte {
	md := []byte(r.RenderMarkdown(report))

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(md, p, renderer)
}

// WriteArtifact saves content under the renderer's artifact directory and
// returns the written path.
func (r *Renderer) WriteArtifact(filename, content string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	path := filepath.Join(r.dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	log.Printf("[Report] Saved artifact %s", path)
	return path, nil
}
