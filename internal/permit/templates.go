package permit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChecklistTemplate 某许可证类型的检查清单模板
type ChecklistTemplate struct {
	PreWork  []TemplateItem `yaml:"pre_work"`
	PostWork []TemplateItem `yaml:"post_work"`
}

// TemplateItem 模板条目
type TemplateItem struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// ChecklistTemplates 按许可证类型索引的模板集合
type ChecklistTemplates map[PermitType]ChecklistTemplate

// LoadChecklistTemplates 从 YAML 文件加载模板，类型缺失时回退到内置默认值。
func LoadChecklistTemplates(path string) (ChecklistTemplates, error) {
	templates := defaultChecklistTemplates()
	if path == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取检查清单模板失败: %w", err)
	}

	var loaded map[string]ChecklistTemplate
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("解析检查清单模板失败: %w", err)
	}

	for name, tpl := range loaded {
		ptype := PermitType(name)
		if !ptype.Valid() {
			return nil, fmt.Errorf("检查清单模板包含未知许可证类型: %s", name)
		}
		templates[ptype] = tpl
	}
	return templates, nil
}

// ItemsFor returns fresh (unchecked) checklist items for the given permit
// type and checklist phase.
func (t ChecklistTemplates) ItemsFor(ptype PermitType, ctype ChecklistType) ChecklistItems {
	tpl, ok := t[ptype]
	if !ok {
		tpl = t[TypeGeneral]
	}
	source := tpl.PreWork
	if ctype == ChecklistPostWork {
		source = tpl.PostWork
	}
	items := make(ChecklistItems, 0, len(source))
	for _, it := range source {
		items = append(items, ChecklistItem{ID: it.ID, Description: it.Description})
	}
	return items
}

func defaultChecklistTemplates() ChecklistTemplates {
	generalPre := []TemplateItem{
		{ID: "ppe", Description: "作业人员已佩戴符合要求的个人防护装备"},
		{ID: "briefing", Description: "已完成作业前安全交底"},
		{ID: "area_secured", Description: "作业区域已隔离并设置警示标识"},
		{ID: "emergency_plan", Description: "应急预案与逃生路线已确认"},
	}
	generalPost := []TemplateItem{
		{ID: "tools_removed", Description: "工具与设备已全部撤离现场"},
		{ID: "area_restored", Description: "作业区域已恢复并清理完毕"},
		{ID: "handover", Description: "现场已移交属地责任人确认"},
	}

	templates := ChecklistTemplates{
		TypeGeneral: {PreWork: generalPre, PostWork: generalPost},
		TypeHotWork: {
			PreWork: append([]TemplateItem{
				{ID: "fire_watch", Description: "看火人已到位并确认职责"},
				{ID: "extinguisher", Description: "灭火器材已就位且在有效期内"},
				{ID: "combustibles", Description: "10 米范围内可燃物已清理或覆盖"},
			}, generalPre...),
			PostWork: append([]TemplateItem{
				{ID: "cooldown_watch", Description: "动火结束后 30 分钟监护已完成"},
			}, generalPost...),
		},
		TypeConfinedSpace: {
			PreWork: append([]TemplateItem{
				{ID: "gas_test", Description: "气体检测结果在允许范围内"},
				{ID: "ventilation", Description: "通风措施已落实并持续有效"},
				{ID: "attendant", Description: "监护人已到位并保持通讯"},
			}, generalPre...),
			PostWork: append([]TemplateItem{
				{ID: "headcount", Description: "进出人员清点一致，无人滞留"},
			}, generalPost...),
		},
		TypeElectrical: {
			PreWork: append([]TemplateItem{
				{ID: "isolation", Description: "电源已断开并验电确认"},
				{ID: "grounding", Description: "接地措施已按规程装设"},
			}, generalPre...),
			PostWork: append([]TemplateItem{
				{ID: "covers_restored", Description: "防护罩与盖板已恢复"},
			}, generalPost...),
		},
		TypeWorkingAtHeight: {
			PreWork: append([]TemplateItem{
				{ID: "harness", Description: "安全带已检查并正确系挂"},
				{ID: "scaffold_tag", Description: "脚手架/平台验收标签在有效期内"},
			}, generalPre...),
			PostWork: generalPost,
		},
		TypeExcavation: {
			PreWork: append([]TemplateItem{
				{ID: "utilities_located", Description: "地下管线已探测并标识"},
				{ID: "shoring", Description: "边坡支护措施符合深度要求"},
			}, generalPre...),
			PostWork: append([]TemplateItem{
				{ID: "backfill", Description: "回填或硬隔离防护已完成"},
			}, generalPost...),
		},
		TypeLifting: {
			PreWork: append([]TemplateItem{
				{ID: "rigging_inspected", Description: "吊索具已检查且在检验有效期内"},
				{ID: "lift_plan", Description: "吊装方案已审批并交底"},
			}, generalPre...),
			PostWork: generalPost,
		},
		TypeLockoutTagout: {
			PreWork: append([]TemplateItem{
				{ID: "locks_applied", Description: "能量隔离点已全部上锁挂牌"},
				{ID: "zero_energy", Description: "零能量状态已验证"},
			}, generalPre...),
			PostWork: append([]TemplateItem{
				{ID: "locks_removed", Description: "锁具与标签已由授权人员移除"},
			}, generalPost...),
		},
	}
	return templates
}
