package tail

import (
	"strings"
	"sync"
)

// PrettyNames maps well-known journal field names to readable keys. The
// table is fixed at construction and never mutated.
type PrettyNames struct {
	table map[string]string
}

var defaultPrettyNames = sync.OnceValue(func() *PrettyNames {
	return &PrettyNames{table: map[string]string{
		"MESSAGE":           "message",
		"MESSAGE_ID":        "message_id",
		"PRIORITY":          "priority",
		"CODE_FILE":         "code_file",
		"CODE_LINE":         "code_line",
		"CODE_FUNC":         "code_func",
		"ERRNO":             "errno",
		"SYSLOG_FACILITY":   "syslog_facility",
		"SYSLOG_IDENTIFIER": "syslog_identifier",
		"SYSLOG_PID":        "syslog_pid",

		"_PID":                       "pid",
		"_UID":                       "uid",
		"_GID":                       "gid",
		"_COMM":                      "command",
		"_EXE":                       "executable",
		"_CMDLINE":                   "command_line",
		"_CAP_EFFECTIVE":             "capabilities",
		"_AUDIT_SESSION":             "audit_session",
		"_AUDIT_LOGINUID":            "audit_loginuid",
		"_SYSTEMD_CGROUP":            "systemd_cgroup",
		"_SYSTEMD_SESSION":           "systemd_session",
		"_SYSTEMD_UNIT":              "systemd_unit",
		"_SYSTEMD_USER_UNIT":         "systemd_user_unit",
		"_SYSTEMD_OWNER_UID":         "systemd_owner_uid",
		"_SYSTEMD_SLICE":             "systemd_slice",
		"_SELINUX_CONTEXT":           "selinux_context",
		"_SOURCE_REALTIME_TIMESTAMP": "source_realtime_timestamp",
		"_BOOT_ID":                   "boot_id",
		"_MACHINE_ID":                "machine_id",
		"_HOSTNAME":                  "hostname",
		"_TRANSPORT":                 "transport",
		"_KERNEL_DEVICE":             "kernel_device",
		"_KERNEL_SUBSYSTEM":          "kernel_subsystem",
		"_UDEV_SYSNAME":              "udev_sysname",
		"_UDEV_DEVNODE":              "udev_devnode",
		"_UDEV_DEVLINK":              "udev_devlink",

		"COREDUMP_UNIT":      "coredump_unit",
		"COREDUMP_USER_UNIT": "coredump_user_unit",
		"OBJECT_PID":         "object_pid",
		"OBJECT_UID":         "object_uid",
		"OBJECT_GID":         "object_gid",
		"OBJECT_COMM":        "object_command",
		"OBJECT_EXE":         "object_executable",
		"OBJECT_CMDLINE":     "object_command_line",

		"__CURSOR":              "journal_cursor",
		"__REALTIME_TIMESTAMP":  "realtime_timestamp",
		"__MONOTONIC_TIMESTAMP": "monotonic_timestamp",
	}}
})

// DefaultPrettyNames returns the shared built-in table.
func DefaultPrettyNames() *PrettyNames {
	return defaultPrettyNames()
}

// Name returns the readable key for field. Fields outside the table are
// lowercased with their leading underscores removed.
func (p *PrettyNames) Name(field string) string {
	if p != nil {
		if name, ok := p.table[field]; ok {
			return name
		}
	}
	return strings.ToLower(strings.TrimLeft(field, "_"))
}

// Len reports the number of built-in mappings.
func (p *PrettyNames) Len() int {
	if p == nil {
		return 0
	}
	return len(p.table)
}
