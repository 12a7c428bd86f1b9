package agent

// ============================================================================
// Agent 目录
// ============================================================================

// Descriptor 对外的 Agent 描述
type Descriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version"`
}

// Profile 已知 Agent 的角色信息
type Profile struct {
	Name     string
	Activity string
	preamble string
}

// Decorate 给结果文本加上角色前缀 (纯展示, 不影响状态语义)
func (p Profile) Decorate(result string) string {
	return p.preamble + result
}

var profiles = map[string]Profile{
	"assistant": {
		Name:     "Bragi",
		Activity: "Bragi is analyzing your task",
	},
	"coordinator": {
		Name:     "Odin",
		Activity: "Odin is coordinating your task",
		preamble: "Odin's wisdom: ",
	},
	"architect": {
		Name:     "Thor",
		Activity: "Thor is architecting your solution",
		preamble: "Thor's guidance: ",
	},
}

// Directory 静态 Agent 目录
//
// 条目固定; 只有 active/inactive 随网关可用性变化。
type Directory struct {
	gateway Gateway
}

// NewDirectory 创建目录
func NewDirectory(gateway Gateway) *Directory {
	return &Directory{gateway: gateway}
}

// Lookup 查找已知 Agent 的角色信息
//
// 未知 ID 返回 false, 调用方走默认处理路径 (不拒绝)。
func (d *Directory) Lookup(agentID string) (Profile, bool) {
	p, ok := profiles[agentID]
	return p, ok
}

// List 返回全部 Agent 描述
func (d *Directory) List() []Descriptor {
	status := "inactive"
	if d.gateway.Available() {
		status = "active"
	}

	return []Descriptor{
		{
			ID:           "assistant",
			Name:         "Bragi",
			Status:       status,
			Type:         "assistant",
			Description:  "A wise and eloquent AI assistant that can help with various tasks.",
			Capabilities: []string{"natural_language_understanding", "task_processing"},
			Version:      "2.0.0",
		},
		{
			ID:           "coordinator",
			Name:         "Odin",
			Status:       status,
			Type:         "coordinator",
			Description:  "The wise overseer of all operations.",
			Capabilities: []string{"strategic_planning", "resource_management"},
			Version:      "2.0.0",
		},
		{
			ID:           "architect",
			Name:         "Thor",
			Status:       status,
			Type:         "architect",
			Description:  "The master builder of the system.",
			Capabilities: []string{"system_architecture", "capability_enhancement"},
			Version:      "2.0.0",
		},
	}
}
