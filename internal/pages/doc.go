// Package pages stores board page metadata next to the embedded update log.
//
// A page's id is also its document id in the update log. Deleting a page
// stages the metadata delete into the log's clear batch, so the page and its
// update history disappear together or not at all.
package pages
