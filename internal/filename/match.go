package filename

import (
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/John-Robertt/photodate/internal/domain"
)

// rule 是一种文件名语法：正则 + 字段提取方式。
//
// 约定：正则的捕获组只包含数字段；extract 负责把它们切成年月日时分秒。
type rule struct {
	Name    string
	re      *regexp.Regexp
	extract func(groups []string) (fields [6]int, err error)
}

// rules 的顺序就是匹配优先级（第一个命中者胜出）。
//
// whatsapp-image 是 whatsapp-image-suffixed 的子集；保留两条以维持与旧脚本一致的命中记录。
var rules = []rule{
	{
		Name:    "whatsapp-image",
		re:      regexp.MustCompile(`^IMG-(\d{8})-WA\d+\.(?i:jpe?g)$`),
		extract: compactDate,
	},
	{
		Name:    "whatsapp-image-suffixed",
		re:      regexp.MustCompile(`^IMG-(\d{8})-WA\d+.*\.(?i:jpe?g)$`),
		extract: compactDate,
	},
	{
		Name:    "dashed-datetime",
		re:      regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2}) (\d{2})\.(\d{2})\.(\d{2}).*\.(?i:jpe?g)$`),
		extract: separateFields,
	},
	{
		Name:    "compact-datetime",
		re:      regexp.MustCompile(`^(\d{8})_(\d{6})`),
		extract: compactDateTime,
	},
	{
		Name:    "whatsapp-video",
		re:      regexp.MustCompile(`^VID-(\d{8})-`),
		extract: compactDate,
	},
	{
		Name:    "screenshot",
		re:      regexp.MustCompile(`^Screenshot_(\d{8})-(\d{6})`),
		extract: compactDateTime,
	},
}

// Rules 返回所有规则名（按优先级）。
func Rules() []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	return names
}

// Match 从文件名（可带目录，只看 base）中解析日期时间。
//
// 返回值：
// - found=false, err=nil：没有任何语法命中（NotFound）
// - err!=nil：命中了语法但数字段不是合法日期（MalformedInput），绝不返回“悄悄算错”的日期
func Match(name string) (domain.Timestamp, bool, error) {
	ts, _, found, err := MatchRule(name)
	return ts, found, err
}

// MatchRule 与 Match 相同，但额外返回命中的规则名（用于日志）。
func MatchRule(name string) (domain.Timestamp, string, bool, error) {
	base := filepath.Base(name)
	for _, r := range rules {
		m := r.re.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		f, err := r.extract(m[1:])
		if err != nil {
			return domain.Timestamp{}, r.Name, false, domain.MarkMalformed(err, "文件名 %q 命中 %s", base, r.Name)
		}
		ts, err := domain.NewTimestamp(f[0], f[1], f[2], f[3], f[4], f[5])
		if err != nil {
			return domain.Timestamp{}, r.Name, false, errors.Wrapf(err, "文件名 %q 命中 %s", base, r.Name)
		}
		return ts, r.Name, true, nil
	}
	return domain.Timestamp{}, "", false, nil
}

// compactDate: YYYYMMDD，时间取 00:00:00。
func compactDate(g []string) ([6]int, error) {
	return splitDigits(g[0], 4, 2, 2)
}

// compactDateTime: YYYYMMDD + HHMMSS。
func compactDateTime(g []string) ([6]int, error) {
	return splitDigits(g[0]+g[1], 4, 2, 2, 2, 2, 2)
}

// separateFields: 每个捕获组就是一个字段。
func separateFields(g []string) ([6]int, error) {
	var f [6]int
	for i := 0; i < len(g) && i < len(f); i++ {
		n, err := strconv.Atoi(g[i])
		if err != nil {
			return f, err
		}
		f[i] = n
	}
	return f, nil
}

func splitDigits(s string, widths ...int) ([6]int, error) {
	var f [6]int
	pos := 0
	for i, w := range widths {
		if pos+w > len(s) {
			return f, errors.Newf("数字段长度不足：%q", s)
		}
		n, err := strconv.Atoi(s[pos : pos+w])
		if err != nil {
			return f, err
		}
		f[i] = n
		pos += w
	}
	return f, nil
}
