// Package catalog 业务数据库的静态Schema描述
// 表、列、枚举与外键关系在设计期确定，运行期只读
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// ColumnType 列的语义类型
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInt      ColumnType = "int"
	TypeFloat    ColumnType = "float"
	TypeBoolean  ColumnType = "boolean"
	TypeDateTime ColumnType = "datetime"
	TypeEnum     ColumnType = "enum"
	TypeJSON     ColumnType = "json"
)

// IsText 是否可作为关键字检索的文本列
func (t ColumnType) IsText() bool {
	return t == TypeString || t == TypeEnum || t == TypeJSON
}

// Column 列描述
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Description string     `json:"description"`
}

// Table 表描述
type Table struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

// HasColumn 判断表中是否存在指定列（大小写敏感）
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// TextColumns 返回 string/enum/json 类型的列
func (t Table) TextColumns() []Column {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Type.IsText() {
			cols = append(cols, c)
		}
	}
	return cols
}

// Relationship 外键关系: Table.Column → RefTable.RefColumn
type Relationship struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// String 渲染为 "Task.projectId → Project.id"
func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s → %s.%s", r.Table, r.Column, r.RefTable, r.RefColumn)
}

// MarshalJSON 关系以字符串形式出现在提示词中
func (r Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Schema 完整的Schema描述
// 进程内共享且不可变，调用方不得修改返回的切片或映射
type Schema struct {
	Enums         map[string][]string `json:"enums"`
	Tables        []Table             `json:"tables"`
	Relationships []Relationship      `json:"relationships"`
	Notes         []string            `json:"importantNotes"`

	once          sync.Once
	tableIndex    map[string]int
	quotedColumns map[string]string
}

// Table 按名称查找表，大小写不敏感
func (s *Schema) Table(name string) (Table, bool) {
	s.buildIndex()
	idx, ok := s.tableIndex[strings.ToLower(name)]
	if !ok {
		return Table{}, false
	}
	return s.Tables[idx], true
}

// CanonicalTable 返回表名的规范大小写形式
func (s *Schema) CanonicalTable(name string) (string, bool) {
	t, ok := s.Table(name)
	return t.Name, ok
}

// CanonicalColumn 返回需要加引号的列名（含大写字母）的规范形式
// 全小写的列在PostgreSQL中加不加引号等价，因此不在此列
func (s *Schema) CanonicalColumn(name string) (string, bool) {
	s.buildIndex()
	c, ok := s.quotedColumns[strings.ToLower(name)]
	return c, ok
}

// TableNames 按声明顺序返回全部表名
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// JSON 渲染为带缩进的JSON，用于嵌入提示词
func (s *Schema) JSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化Schema失败: %w", err)
	}
	return string(data), nil
}

// Validate 校验Schema的结构不变量
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("表名不能为空")
		}
		if seen[t.Name] {
			return fmt.Errorf("重复的表名: %s", t.Name)
		}
		seen[t.Name] = true

		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if cols[c.Name] {
				return fmt.Errorf("表 %s 中存在重复列: %s", t.Name, c.Name)
			}
			cols[c.Name] = true
		}
	}

	for _, r := range s.Relationships {
		for _, ref := range [][2]string{{r.Table, r.Column}, {r.RefTable, r.RefColumn}} {
			t, ok := s.Table(ref[0])
			if !ok || t.Name != ref[0] {
				return fmt.Errorf("关系 %s 引用了不存在的表 %s", r, ref[0])
			}
			if !t.HasColumn(ref[1]) {
				return fmt.Errorf("关系 %s 引用了不存在的列 %s.%s", r, ref[0], ref[1])
			}
		}
	}
	return nil
}

func (s *Schema) buildIndex() {
	s.once.Do(func() {
		s.tableIndex = make(map[string]int, len(s.Tables))
		s.quotedColumns = make(map[string]string)
		for i, t := range s.Tables {
			s.tableIndex[strings.ToLower(t.Name)] = i
			for _, c := range t.Columns {
				if hasUpper(c.Name) {
					s.quotedColumns[strings.ToLower(c.Name)] = c.Name
				}
			}
		}
	})
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
