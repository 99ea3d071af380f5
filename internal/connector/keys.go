package connector

// Envelope keys for Command fields.
const (
	KeyCommandType         = "command_type"
	KeyCommandDefPrefix    = "command_defprefix"
	KeyCommandDefSender    = "command_defsender"
	KeyCommandRecipients   = "command_recipients"
	KeyCommandText         = "command_text"
	KeyCommandFlash        = "command_flashsms"
	KeyCommandTimestamp    = "command_timestamp"
	KeyCommandCustomSender = "command_customsender"
)

// Envelope keys for Spec fields.
const (
	KeySpecID           = "connector_id"
	KeySpecName         = "connector_name"
	KeySpecAuthor       = "connector_author"
	KeySpecCapabilities = "connector_capabilities"
	KeySpecStatus       = "connector_status"
	KeySpecError        = "connector_error"
	KeySpecBalance      = "connector_balance"
)
