// Package domain models flood and water-event occurrences reported across a
// city's neighbourhoods (bairros) and the aggregates derived from them.
//
// # Data Source
//
// Occurrences arrive as a GeoJSON FeatureCollection exported from the city's
// civil-defence incident log. Each feature is a point with a flat properties
// object. The fields this package relies on are:
//
//	bairro          neighbourhood name, free text, sometimes padded with spaces
//	tipo            occurrence type, e.g. "Alagamento", "Bolsão d'água", "Lâmina d'água"
//	data_inicio     start timestamp (preferred)
//	data_fim        end timestamp (second choice)
//	data_particao   partition date of the export (last resort)
//
// Exports are not clean. Coordinates may be ["", ""], numeric strings, or
// missing altogether; latitude/longitude properties may be empty strings.
// See [SanitizeOccurrences] and [CleanFeatures].
//
// Neighbourhood boundaries come from the municipal "Limite de Bairros" layer.
// The name column varies between releases (bairro, NOME, nome_bairro, ...), and
// ArcGIS exports carry a precomputed area column, st_areasha, in square metres.
//
// # Seasons
//
// Seasons are austral and year-independent, starting on fixed calendar days:
//
//	autumn   20 Mar
//	winter   20 Jun
//	spring   22 Sep
//	summer   21 Dec
//
// A date falling on a start day belongs to the season that starts there.
// See [ClassifyDate].
//
// # Join Keys
//
// Counts are attached to polygons by neighbourhood name. Both sides go through
// [NormalizeKey] (stringify, trim) so "Centro " and "Centro" join. Polygons with
// no occurrences keep zero counts; nothing is dropped from the boundary layer.
//
// # Output Field Names
//
// Enriched layers may be converted to shapefiles downstream, where attribute
// names are capped at 10 characters. Every generated name respects
// [MaxFieldNameLen]:
//
//	cont_total  dens_km2  area_km2
//	cont_alag   cont_bols   cont_lam     (and dens_*)
//	cont_sum    cont_aut    cont_win   cont_spr   (and dens_*)
//	c_alag_sum  d_alag_sum  ...         (category × season)
package domain
