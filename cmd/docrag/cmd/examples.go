package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibhup/docrag/internal/output"
)

// exampleCategory groups sample questions by documentation area.
type exampleCategory struct {
	Name      string   `json:"name"`
	Questions []string `json:"questions"`
}

// exampleCategories is the built-in question catalog. Order matters for
// display.
var exampleCategories = []exampleCategory{
	{
		Name: "compute",
		Questions: []string{
			"How do I choose between Lambda and EC2 for a new workload?",
			"What happens to in-flight requests when a Lambda function scales down?",
			"How does EC2 Auto Scaling decide when to launch instances?",
		},
	},
	{
		Name: "storage",
		Questions: []string{
			"How does S3 versioning work?",
			"What consistency guarantees does S3 provide?",
			"When should I use S3 Glacier instead of S3 Standard-IA?",
		},
	},
	{
		Name: "database",
		Questions: []string{
			"What is a DynamoDB partition key and how should I pick one?",
			"How does RDS Multi-AZ failover work?",
			"When does DynamoDB throttle reads?",
		},
	},
	{
		Name: "networking",
		Questions: []string{
			"How do security groups differ from network ACLs?",
			"How does VPC peering handle overlapping CIDR ranges?",
			"What does a NAT gateway cost per GB?",
		},
	},
	{
		Name: "security",
		Questions: []string{
			"How do IAM roles differ from IAM users?",
			"What is the difference between SSE-S3 and SSE-KMS encryption?",
			"How do I grant cross-account access to an S3 bucket?",
		},
	},
}

// newExamplesCmd creates the examples command.
func newExamplesCmd() *cobra.Command {
	var category string
	var format string

	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Show example questions to try",
		Long: `Show a catalog of example questions grouped by documentation area.

Examples:
  docrag examples
  docrag examples --category storage
  docrag examples --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExamples(cmd, category, format)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Show one category: "+strings.Join(categoryNames(), ", "))
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runExamples(cmd *cobra.Command, category, format string) error {
	out := output.New(cmd.OutOrStdout())

	selected := exampleCategories
	if category != "" {
		selected = nil
		for _, c := range exampleCategories {
			if strings.EqualFold(c.Name, category) {
				selected = []exampleCategory{c}
				break
			}
		}
		if selected == nil {
			return fmt.Errorf("unknown category %q (available: %s)", category, strings.Join(categoryNames(), ", "))
		}
	}

	if format == "json" {
		return out.JSON(selected)
	}

	for i, c := range selected {
		if i > 0 {
			out.Newline()
		}
		out.Statusf("", "%s:", c.Name)
		for _, q := range c.Questions {
			out.Statusf("", `  docrag query "%s"`, q)
		}
	}
	return nil
}

func categoryNames() []string {
	names := make([]string, len(exampleCategories))
	for i, c := range exampleCategories {
		names[i] = c.Name
	}
	return names
}
