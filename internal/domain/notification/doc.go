// Package notification provides domain models for the invoice reminder dispatcher.
//
// This package implements the notification bounded context, which is responsible for:
//   - Mirroring companies, invoices, templates and config from the system of record
//   - Deciding which reminder is due for an invoice on a given day
//   - Keeping the append-only send log used as the dedup ledger
//
// Key Entities:
//   - Company: billed customer of the firm, owner of invoices
//   - Invoice: a boleto issued by the billing provider for one billing period
//   - SendRecord: immutable outcome of one dispatch attempt
//
// Value Objects:
//   - Period: billing period (competência) as month and year
//   - NotificationType: the four reminder kinds and their offset rules
//   - InvoiceStatus: normalized provider invoice state
package notification
