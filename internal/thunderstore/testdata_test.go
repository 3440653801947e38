package thunderstore

// listingJSON is a trimmed Thunderstore v1 listing used across tests.
const listingJSON = `[
  {
    "name": "BepInExPack_Valheim",
    "full_name": "denikson-BepInExPack_Valheim",
    "owner": "denikson",
    "package_url": "https://thunderstore.io/c/valheim/p/denikson/BepInExPack_Valheim/",
    "date_created": "2021-02-02T10:00:00.000000Z",
    "date_updated": "2024-01-10T10:00:00.000000Z",
    "rating_score": 900,
    "is_deprecated": false,
    "categories": ["Libraries", "Tools"],
    "versions": [
      {
        "version_number": "5.4.2200",
        "description": "BepInEx pack for Valheim",
        "download_url": "https://thunderstore.io/package/download/denikson/BepInExPack_Valheim/5.4.2200/",
        "downloads": 100,
        "file_size": 1024,
        "date_created": "2023-06-01T10:00:00Z",
        "dependencies": []
      },
      {
        "version_number": "5.4.2202",
        "description": "BepInEx pack for Valheim. Preconfigured.",
        "download_url": "https://thunderstore.io/package/download/denikson/BepInExPack_Valheim/5.4.2202/",
        "downloads": 500,
        "file_size": 2048,
        "date_created": "2024-01-10T10:00:00Z",
        "dependencies": []
      }
    ]
  },
  {
    "name": "Jotunn",
    "full_name": "ValheimModding-Jotunn",
    "owner": "ValheimModding",
    "date_created": "2021-03-01T10:00:00Z",
    "date_updated": "2024-03-01T10:00:00Z",
    "rating_score": 400,
    "categories": ["Libraries"],
    "versions": [
      {
        "version_number": "2.20.0",
        "description": "Jotunn, the Valheim library",
        "download_url": "https://thunderstore.io/package/download/ValheimModding/Jotunn/2.20.0/",
        "downloads": 2000,
        "dependencies": ["denikson-BepInExPack_Valheim-5.4.2202"]
      }
    ]
  },
  {
    "name": "PlantEverything",
    "full_name": "Advize-PlantEverything",
    "owner": "Advize",
    "date_created": "2023-01-01T10:00:00Z",
    "date_updated": "2023-05-01T10:00:00Z",
    "rating_score": 50,
    "categories": ["Mods", "Tweaks"],
    "versions": [
      {
        "version_number": "1.16.0",
        "description": "Plant all the things",
        "download_url": "https://thunderstore.io/package/download/Advize/PlantEverything/1.16.0/",
        "downloads": 300,
        "dependencies": ["denikson-BepInExPack_Valheim-5.4.2200", "ValheimModding-Jotunn-2.20.0"]
      }
    ]
  },
  {
    "name": "Broken",
    "full_name": "Nobody-Broken",
    "owner": "Nobody",
    "categories": [],
    "versions": [
      {"version_number": "latest", "download_url": "https://example.invalid/x.zip", "dependencies": []}
    ]
  }
]`
