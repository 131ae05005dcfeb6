// Package query builds basicspacedata query paths.
//
//	q := query.New(query.EntityGP).
//	    Where("NORAD_CAT_ID", 25544, 25541).
//	    Where("EPOCH", query.Greater(query.Now(-3))).
//	    OrderBy("EPOCH desc").
//	    Limit(10)
//	q.Path()
//	// basicspacedata/query/class/gp/NORAD_CAT_ID/25544,25541/EPOCH/>now-3/format/json/metadata/false/orderby/EPOCH desc/limit/10/
package query
