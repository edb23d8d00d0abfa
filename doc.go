// The [blocktolinks] package turns a block type of a content repository into
// a standalone record type, rewriting every field that embedded its blocks.
//
// # Pipeline
//
// A [Converter] drives one conversion in order:
//
//  1. discover every path from a record type down to the block type, across
//     blocks nested in other blocks and structured-text documents;
//  2. create the destination record type with a copy of every field;
//  3. create one record per block instance, merging the locales of a block
//     that sits in the same slot of a localized field;
//  4. convert each field that held the blocks so that it references the new
//     records instead.
//
// [Converter.Analyze] runs the first step alone and reports what a
// conversion would touch.
//
// # Failure model
//
// Conversion is forward-only. Schema problems stop it and are reported in
// [ConversionResult.Error]; a record that cannot be created or updated is
// logged, listed in [ConversionResult.FailedRecords] and skipped. With a
// [github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/checkpoint.Store]
// configured, created records survive an interrupted run so that running
// again does not duplicate them.
//
// # Content API
//
// The converter talks to the content API through
// [github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection.Connection].
// The HTTP implementation lives in the same package.
package blocktolinks
