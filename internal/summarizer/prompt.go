package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/repository"
)

const contentPreviewRunes = 200

// Language codes, primary first.
const (
	LanguageZH = "zh"
	LanguageEN = "en"
)

var languages = []string{LanguageZH, LanguageEN}

// memberActivities is one member's slice of the window, in query order.
type memberActivities struct {
	Name       string
	Position   string
	Activities []model.Activity
}

// groupByMember keeps members in first-seen order and drops groups whose
// member no longer exists.
func groupByMember(ctx context.Context, store repository.Store, activities []model.Activity) ([]memberActivities, error) {
	var ids []uint
	byMember := make(map[uint][]model.Activity)
	for _, a := range activities {
		if _, ok := byMember[a.MemberID]; !ok {
			ids = append(ids, a.MemberID)
		}
		byMember[a.MemberID] = append(byMember[a.MemberID], a)
	}

	groups := make([]memberActivities, 0, len(ids))
	for _, id := range ids {
		member, err := store.GetMember(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load member %d: %w", id, err)
		}
		if member == nil {
			continue
		}
		groups = append(groups, memberActivities{
			Name:       member.Name,
			Position:   member.Position,
			Activities: byMember[id],
		})
	}
	return groups, nil
}

func distinctMembers(activities []model.Activity) int {
	seen := make(map[uint]struct{})
	for _, a := range activities {
		seen[a.MemberID] = struct{}{}
	}
	return len(seen)
}

func formatActivityData(groups []memberActivities) string {
	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "\n%s (%s):\n", g.Name, g.Position)
		for _, a := range g.Activities {
			fmt.Fprintf(&b, "- %s: %s", strings.ToUpper(a.Platform), a.ActivityType)
			if a.Title != "" {
				fmt.Fprintf(&b, " - %s", a.Title)
			}
			if a.Content != "" {
				fmt.Fprintf(&b, "\n  Content: %s...", truncateRunes(a.Content, contentPreviewRunes))
			}
			if a.URL != "" {
				fmt.Fprintf(&b, "\n  URL: %s", a.URL)
			}
			if a.PublishedAt != nil {
				fmt.Fprintf(&b, "\n  Published: %s", a.PublishedAt.UTC().Format(time.RFC3339))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var systemPrompts = map[string]string{
	LanguageZH: "你是一名专业的社交媒体活动分析师。请用简体中文为团队成员在各平台上的活动撰写简洁、信息丰富的总结。",
	LanguageEN: "You are a professional social media activity analyst. Create concise, informative summaries of team member activities across various platforms. Respond in English.",
}

const promptZH = `请为 %s 期间团队成员的社交媒体活动生成一份%s总结。

活动数据：
%s

请在总结中包含：
1. 整体活动概览与趋势
2. 每位成员的重点亮点
3. 各平台洞察（LinkedIn、GitHub 等）
4. 值得关注的成就或里程碑
5. 建议或观察

输出要求：使用 Markdown 格式，包含二级和三级标题、项目符号列表、对关键信息加粗，并在适合时使用表格汇总各成员的活动数量。
`

const promptEN = `Please create a %[2]s summary of team member social media activities for the period %[1]s.

Activity Data:
%[3]s

Please provide a comprehensive summary that includes:
1. Overall activity overview and trends
2. Key highlights from each team member
3. Platform-specific insights (LinkedIn, GitHub, etc.)
4. Notable achievements or milestones
5. Recommendations or observations

Output format: Markdown with level-2 and level-3 headings, bullet lists, bold for key facts, and a table summarizing activity counts per member where it helps.
`

var summaryTypeNamesZH = map[string]string{
	model.SummaryDaily:  "每日",
	model.SummaryWeekly: "每周",
	model.SummaryMember: "成员",
	model.SummaryCustom: "自定义",
}

// buildPrompt returns the system and user messages for one language.
func buildPrompt(language, summaryType string, start, end time.Time, groups []memberActivities) (system, user string) {
	data := formatActivityData(groups)
	dateRange := fmt.Sprintf("%s to %s", start.Format(dateLayout), end.Format(dateLayout))

	if language == LanguageZH {
		typeName := summaryTypeNamesZH[summaryType]
		if typeName == "" {
			typeName = summaryType
		}
		dateRange = fmt.Sprintf("%s 至 %s", start.Format(dateLayout), end.Format(dateLayout))
		return systemPrompts[LanguageZH], fmt.Sprintf(promptZH, dateRange, typeName, data)
	}
	return systemPrompts[LanguageEN], fmt.Sprintf(promptEN, dateRange, summaryType, data)
}
