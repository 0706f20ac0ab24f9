package store

import "maps"

// Settings is free-form keyed configuration. Record-valued entries are
// map[string]any.
type Settings map[string]any

// Keys persisted with the settings blob, plus the transient update flag.
const (
	SettingLang                          = "lang"
	SettingGraduate                      = "graduate"
	SettingNewAssignmentNotification     = "newAssignmentNotification"
	SettingCalendarSync                  = "calendarSync"
	SettingAssignmentSync                = "assignmentSync"
	SettingSyncAssignmentsOnlyUnfinished = "syncAssignmentsOnlyUnfinished"
	SettingAlarms                        = "alarms"
	SettingFileCacheLocation             = "fileCacheLocation"
	SettingFileOmitCourseName            = "fileOmitCourseName"
	SettingNoticeFilter                  = "noticeFilter"
	SettingHasUpdate                     = "hasUpdate"
)

func DefaultSettings() Settings {
	return Settings{
		SettingLang:                          "zh",
		SettingGraduate:                      false,
		SettingNewAssignmentNotification:     true,
		SettingCalendarSync:                  false,
		SettingAssignmentSync:                false,
		SettingSyncAssignmentsOnlyUnfinished: false,
		SettingAlarms: map[string]any{
			"assignmentMinutes": float64(60 * 24),
			"eventMinutes":      float64(15),
		},
		SettingFileCacheLocation:  "",
		SettingFileOmitCourseName: false,
		SettingNoticeFilter: map[string]any{
			"showArchived": false,
			"showHidden":   false,
		},
		SettingHasUpdate: false,
	}
}

type SettingKind int

const (
	// Scalar replaces the stored value.
	Scalar SettingKind = iota
	// Record shallow-merges fields into the stored record.
	Record
)

func (k SettingKind) String() string {
	if k == Record {
		return "record"
	}
	return "scalar"
}

type SettingUpdate struct {
	Key    string
	Kind   SettingKind
	Value  any
	Fields map[string]any
}

func ScalarUpdate(key string, v any) SettingUpdate {
	return SettingUpdate{Key: key, Kind: Scalar, Value: v}
}

func RecordUpdate(key string, fields map[string]any) SettingUpdate {
	return SettingUpdate{Key: key, Kind: Record, Fields: fields}
}

// Apply returns a copy of s with u applied. A Record update against a
// missing or non-record value starts from an empty record.
func (s Settings) Apply(u SettingUpdate) Settings {
	next := maps.Clone(s)
	if next == nil {
		next = Settings{}
	}
	switch u.Kind {
	case Record:
		rec := map[string]any{}
		if cur, ok := next[u.Key].(map[string]any); ok {
			rec = maps.Clone(cur)
		}
		for k, v := range u.Fields {
			rec[k] = v
		}
		next[u.Key] = rec
	default:
		next[u.Key] = u.Value
	}
	return next
}

func (s Settings) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

func (s Settings) Text(key string) string {
	v, _ := s[key].(string)
	return v
}

// Persistable drops transient keys.
func (s Settings) Persistable() Settings {
	out := maps.Clone(s)
	delete(out, SettingHasUpdate)
	return out
}
