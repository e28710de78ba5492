// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

const (
	// SQL table names:
	eventTable = "schedule_event"

	// SQL column names:
	eventID       = eventTable + ".id"
	eventEntity   = eventTable + ".entity_id"
	eventStart    = eventTable + ".start_time"
	eventEnd      = eventTable + ".end_time"
	eventVersion  = eventTable + ".version"
	eventVersions = eventTable + ".versions"
	eventData     = eventTable + ".data"
	eventUpdated  = eventTable + ".updated"

	// WHERE clause fragments:
	isEvent       = eventID + "=$1"
	isInstant     = eventEnd + "<=" + eventStart
	isNotInstant  = eventEnd + ">" + eventStart
	lockForUpdate = " FOR UPDATE"
)

// eventColumns is the list of columns scanEvent expects, in order.
var eventColumns = []string{
	eventID,
	eventEntity,
	eventStart,
	eventEnd,
	eventVersion,
	eventVersions,
	eventData,
}

// eventInEntity returns a WHERE clause fragment selecting events
// owned by an entity.
func eventInEntity(params *queryParams, entity int64) string {
	return eventEntity + "=" + params.Param(entity)
}

// eventOverlaps returns a WHERE clause fragment selecting events that
// intersect [from, to).  Instantaneous events match if they start
// inside the range.
func eventOverlaps(params *queryParams, from, to interface{}) string {
	pFrom := params.Param(from)
	pTo := params.Param(to)
	return ("((" + isNotInstant + " AND " +
		eventStart + "<" + pTo + " AND " +
		eventEnd + ">" + pFrom + ") OR (" +
		isInstant + " AND " +
		eventStart + ">=" + pFrom + " AND " +
		eventStart + "<" + pTo + "))")
}
