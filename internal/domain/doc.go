// Package domain defines the core entities tracked by the bookkeeping
// layer: tasks, per-record notifications and outcomes, validation
// statistics, and harvested records. Entities carry their own validation;
// all persistence goes through the store interfaces.
package domain
