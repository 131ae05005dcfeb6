package spacetrack

// The catalog returns every column as a string, numbers included, so the
// models keep them as strings.

// GPRecord is one row of the gp and gp_history classes
type GPRecord struct {
	NoradCatID      string `json:"NORAD_CAT_ID"`
	ObjectName      string `json:"OBJECT_NAME"`
	ObjectID        string `json:"OBJECT_ID"`
	ObjectType      string `json:"OBJECT_TYPE"`
	Epoch           string `json:"EPOCH"`
	MeanMotion      string `json:"MEAN_MOTION"`
	Eccentricity    string `json:"ECCENTRICITY"`
	Inclination     string `json:"INCLINATION"`
	RAOfAscNode     string `json:"RA_OF_ASC_NODE"`
	ArgOfPericenter string `json:"ARG_OF_PERICENTER"`
	MeanAnomaly     string `json:"MEAN_ANOMALY"`
	BStar           string `json:"BSTAR"`
	CountryCode     string `json:"COUNTRY_CODE"`
	LaunchDate      string `json:"LAUNCH_DATE"`
	DecayDate       string `json:"DECAY_DATE"`
	TLELine0        string `json:"TLE_LINE0"`
	TLELine1        string `json:"TLE_LINE1"`
	TLELine2        string `json:"TLE_LINE2"`
}

// TLERecord is one row of the tle, tle_latest and tle_publish classes
type TLERecord struct {
	NoradCatID   string `json:"NORAD_CAT_ID"`
	ObjectName   string `json:"OBJECT_NAME"`
	Epoch        string `json:"EPOCH"`
	Ordinal      string `json:"ORDINAL"`
	Line0        string `json:"TLE_LINE0"`
	Line1        string `json:"TLE_LINE1"`
	Line2        string `json:"TLE_LINE2"`
	PublishEpoch string `json:"PUBLISH_EPOCH"`
}

// SatCatRecord is one row of the satcat class
type SatCatRecord struct {
	NoradCatID  string `json:"NORAD_CAT_ID"`
	IntlDes     string `json:"INTLDES"`
	ObjectType  string `json:"OBJECT_TYPE"`
	SatName     string `json:"SATNAME"`
	Country     string `json:"COUNTRY"`
	Launch      string `json:"LAUNCH"`
	Site        string `json:"SITE"`
	Decay       string `json:"DECAY"`
	Period      string `json:"PERIOD"`
	Inclination string `json:"INCLINATION"`
	Apogee      string `json:"APOGEE"`
	Perigee     string `json:"PERIGEE"`
	Current     string `json:"CURRENT"`
}

// DecayRecord is one row of the decay class
type DecayRecord struct {
	NoradCatID string `json:"NORAD_CAT_ID"`
	ObjectName string `json:"OBJECT_NAME"`
	IntlDes    string `json:"INTLDES"`
	Country    string `json:"COUNTRY"`
	RCS        string `json:"RCS"`
	MsgEpoch   string `json:"MSG_EPOCH"`
	DecayEpoch string `json:"DECAY_EPOCH"`
	Source     string `json:"SOURCE"`
	MsgType    string `json:"MSG_TYPE"`
	Precedence string `json:"PRECEDENCE"`
}
