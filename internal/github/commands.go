package github

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ilia01/assembla2gh/internal/models"
)

// PlaceholderTitle is the title and body of issues created only to keep
// GitHub issue numbers in step with Assembla ticket numbers.
const PlaceholderTitle = "Placeholder"

func CreateMilestoneArgs(repo string, m *models.Milestone) []string {
	args := []string{"api", fmt.Sprintf("repos/%s/milestones", repo), "-X", "POST",
		"-f", "title=" + m.Name, "-f", "description=" + m.Description}
	if m.DueOn != "" {
		args = append(args, "-f", "due_on="+m.DueOn)
	}
	return args
}

func CloseMilestoneArgs(repo string, number int, m *models.Milestone) []string {
	return []string{"api", fmt.Sprintf("repos/%s/milestones/%d", repo, number), "-X", "PATCH", "-f", "state=" + m.State}
}

func CreateLabelArgs(repo, name string) []string {
	return []string{"label", "create", name, "--repo", repo}
}

func CreateIssueArgs(repo string, t *models.Ticket) []string {
	args := []string{"issue", "create", "--title", t.Title, "--body", t.Markdown(false), "--repo", repo}
	for _, l := range t.Labels {
		args = append(args, "--label", l)
	}
	if t.GitHubAssignee != "" {
		args = append(args, "--assignee", t.GitHubAssignee)
	}
	if t.Milestone != nil {
		args = append(args, "--milestone", t.Milestone.Name)
	}
	return args
}

// EditIssueArgs updates an issue that already exists instead of creating it.
func EditIssueArgs(repo string, t *models.Ticket) []string {
	args := []string{"issue", "edit", strconv.Itoa(t.Number), "--title", t.Title, "--body", t.Markdown(false), "--repo", repo}
	for _, l := range t.Labels {
		args = append(args, "--add-label", l)
	}
	if t.GitHubAssignee != "" {
		args = append(args, "--add-assignee", t.GitHubAssignee)
	}
	if t.Milestone != nil {
		args = append(args, "--milestone", t.Milestone.Name)
	}
	return args
}

func CloseIssueArgs(repo string, number int, reason string) []string {
	return []string{"issue", "close", strconv.Itoa(number), "--repo", repo, "--reason", reason}
}

func PlaceholderArgs(repo string) []string {
	return []string{"issue", "create", "--title", PlaceholderTitle, "--body", PlaceholderTitle, "--repo", repo}
}

// MilestoneNumber reads the number GitHub assigned from a milestone creation
// response.
func MilestoneNumber(output string) (int, bool) {
	output = strings.TrimSpace(output)
	if output == "" {
		return 0, false
	}
	var resp struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal([]byte(output), &resp); err != nil || resp.Number < 1 {
		return 0, false
	}
	return resp.Number, true
}
