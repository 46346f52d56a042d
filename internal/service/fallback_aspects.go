package service

import "strings"

// ItemAspect 读取时派生的物品属性，不落库
type ItemAspect struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	// 值类型: text (自由文本) / select (枚举) / numeric (数字)
	ValueType string   `json:"value_type"`
	Options   []string `json:"options,omitempty"`
	Unit      string   `json:"unit,omitempty"`
}

// 值类型常量
const (
	AspectTypeText    = "text"
	AspectTypeSelect  = "select"
	AspectTypeNumeric = "numeric"
)

// FallbackAspectsVersion 兜底属性表版本，随同步器一起维护
const FallbackAspectsVersion = "2026-08"

// 类目族常量
const (
	familyFootwear    = "footwear"
	familyApparel     = "apparel"
	familyElectronics = "electronics"
	familyGeneric     = "generic"
)

// fallbackAspectTable 类目族 -> 兜底属性集
// 集中维护替代散落的字面量匹配，启动时解析一次
var fallbackAspectTable = map[string][]ItemAspect{
	familyFootwear: {
		{Name: "Brand", Required: true, ValueType: AspectTypeText},
		{Name: "Condition", Required: true, ValueType: AspectTypeSelect, Options: []string{"New", "Pre-owned"}},
		{Name: "US Shoe Size", Required: true, ValueType: AspectTypeNumeric},
		{Name: "Color", Required: false, ValueType: AspectTypeText},
		{Name: "Style", Required: false, ValueType: AspectTypeText},
	},
	familyApparel: {
		{Name: "Brand", Required: true, ValueType: AspectTypeText},
		{Name: "Condition", Required: true, ValueType: AspectTypeSelect, Options: []string{"New", "Pre-owned"}},
		{Name: "Size", Required: true, ValueType: AspectTypeText},
		{Name: "Color", Required: false, ValueType: AspectTypeText},
		{Name: "Material", Required: false, ValueType: AspectTypeText},
	},
	familyElectronics: {
		{Name: "Brand", Required: true, ValueType: AspectTypeText},
		{Name: "Condition", Required: true, ValueType: AspectTypeSelect, Options: []string{"New", "Refurbished", "Used"}},
		{Name: "Model", Required: false, ValueType: AspectTypeText},
		{Name: "Storage Capacity", Required: false, ValueType: AspectTypeNumeric, Unit: "GB"},
	},
	familyGeneric: {
		{Name: "Brand", Required: true, ValueType: AspectTypeText},
		{Name: "Condition", Required: true, ValueType: AspectTypeSelect, Options: []string{"New", "Used"}},
		{Name: "Color", Required: false, ValueType: AspectTypeText},
	},
}

// 类目 ID 前缀 -> 类目族的粗粒度映射
// eBay 鞋类多在 15709/93427 一带，服饰在 11450 大类下
var familyByCategoryPrefix = []struct {
	prefix string
	family string
}{
	{"15709", familyFootwear},
	{"93427", familyFootwear},
	{"11450", familyApparel},
	{"1059", familyApparel},
	{"9355", familyElectronics},
	{"58058", familyElectronics},
}

// resolveFallbackAspects 未命中缓存时的兜底属性集
// 对格式合法的类目 ID 永不失败，始终有非空返回
func resolveFallbackAspects(categoryID string) []ItemAspect {
	for _, m := range familyByCategoryPrefix {
		if strings.HasPrefix(categoryID, m.prefix) {
			return fallbackAspectTable[m.family]
		}
	}
	return fallbackAspectTable[familyGeneric]
}
